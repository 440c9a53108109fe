package types

import "time"

// MetricsRecord is the measurement history of one node.
type MetricsRecord struct {
	RequestDurations    []time.Duration  `json:"request_durations"`
	ErrorMessages       []string         `json:"error_messages"`
	ReceivedObjectsList []map[string]int `json:"received_objects_list"`
}

// Sample is the outcome of one probe attempt against one node.
type Sample struct {
	Duration time.Duration
	// Error is empty when the attempt succeeded.
	Error string
	// ReceivedObjects is nil when the attempt produced no data.
	ReceivedObjects map[string]int
}

// Append records one probe attempt. The data map is copied so later changes by
// the caller cannot reach into the history.
func (r *MetricsRecord) Append(s Sample) {
	r.RequestDurations = append(r.RequestDurations, s.Duration)
	r.ErrorMessages = append(r.ErrorMessages, s.Error)
	if s.ReceivedObjects != nil {
		r.ReceivedObjectsList = append(r.ReceivedObjectsList, copyCounts(s.ReceivedObjects))
	}
}

// Clone returns a deep copy of r.
func (r *MetricsRecord) Clone() *MetricsRecord {
	if r == nil {
		return &MetricsRecord{}
	}
	out := &MetricsRecord{
		RequestDurations: append([]time.Duration(nil), r.RequestDurations...),
		ErrorMessages:    append([]string(nil), r.ErrorMessages...),
	}
	if len(r.ReceivedObjectsList) > 0 {
		out.ReceivedObjectsList = make([]map[string]int, len(r.ReceivedObjectsList))
		for i, m := range r.ReceivedObjectsList {
			out.ReceivedObjectsList[i] = copyCounts(m)
		}
	}
	return out
}

// LatestData returns the most recent data sample, or nil if none exists.
func (r *MetricsRecord) LatestData() map[string]int {
	if len(r.ReceivedObjectsList) == 0 {
		return nil
	}
	return r.ReceivedObjectsList[len(r.ReceivedObjectsList)-1]
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
