package record

import "encoding/json"

// FeatureNames lists the scorer inputs in vector order.
var FeatureNames = [FeatureCount]string{"actualDuration", "renderTime", "stateUpdates", "propsReceived", "propsUsed"}

// FeatureCount is the fixed length of a FeatureVector.
const FeatureCount = 5

// PropsUsedUnknown stands in for an untracked propsUsed.
const PropsUsedUnknown = -1

// FeatureVector is the fixed-order scorer input derived from a record.
type FeatureVector [FeatureCount]float64

// Features builds the vector for r. A missing PropsUsed becomes
// PropsUsedUnknown so the length never changes.
func Features(r PerformanceRecord) FeatureVector {
	propsUsed := float64(PropsUsedUnknown)
	if r.PropsUsed != nil {
		propsUsed = float64(*r.PropsUsed)
	}
	return FeatureVector{
		r.ActualDuration,
		r.RenderTime,
		float64(r.StateUpdates),
		float64(r.PropsReceived),
		propsUsed,
	}
}

// Encode renders the vector as a JSON array, the scorer's argument format.
func (v FeatureVector) Encode() (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
