package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ScoreMap holds one propensity per product. Masked products stay present
// with a zero score.
type ScoreMap map[Product]float64

func (s ScoreMap) Clone() ScoreMap {
	out := make(ScoreMap, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type RankedEntry struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// RankedResult is sorted by descending score. It encodes as a JSON object
// whose keys keep that order.
type RankedResult []RankedEntry

func (r RankedResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Product))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(e.Score, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Products lists the ranked products in order.
func (r RankedResult) Products() []Product {
	out := make([]Product, len(r))
	for i, e := range r {
		out[i] = e.Product
	}
	return out
}

// Recommendation is one persisted ranked product for a customer.
type Recommendation struct {
	ID            string  `json:"id"`
	CustomerID    string  `json:"customerId"`
	RequestID     string  `json:"requestId"`
	Product       Product `json:"product"`
	Order         int     `json:"order"`
	Score         float64 `json:"score"`
	SchemaVersion string  `json:"schemaVersion"`
	CreatedAt     string  `json:"createdAt"`
}
