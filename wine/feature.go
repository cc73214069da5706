// Package wine describes the red wine physicochemical dataset: the eleven
// input features, single samples, and the labelled table used for training.
package wine

import "strings"

// Feature identifies one physicochemical measurement. The numeric value is the
// column position the model was trained with.
type Feature int

const (
	FixedAcidity Feature = iota
	VolatileAcidity
	CitricAcid
	ResidualSugar
	Chlorides
	FreeSulfurDioxide
	TotalSulfurDioxide
	Density
	PH
	Sulphates
	Alcohol
)

// NumFeatures is the number of model inputs.
const NumFeatures = 11

// QualityColumn is the target column of the dataset.
const QualityColumn = "quality"

type featureInfo struct {
	column string
	key    string
	label  string
	min    float64
	max    float64
	def    float64
}

// min/max are the bounds of the interactive sliders, def is the preset value.
var featureTable = [NumFeatures]featureInfo{
	{"fixed acidity", "fixed_acidity", "Fixed Acidity", 4.0, 16.0, 7.4},
	{"volatile acidity", "volatile_acidity", "Volatile Acidity", 0.1, 2.0, 0.7},
	{"citric acid", "citric_acid", "Citric Acid", 0.0, 1.0, 0.0},
	{"residual sugar", "residual_sugar", "Residual Sugar", 0.5, 16.0, 1.9},
	{"chlorides", "chlorides", "Chlorides", 0.01, 0.6, 0.076},
	{"free sulfur dioxide", "free_sulfur_dioxide", "Free S.D.", 1.0, 75.0, 11.0},
	{"total sulfur dioxide", "total_sulfur_dioxide", "Total S.D.", 6.0, 290.0, 34.0},
	{"density", "density", "Density", 0.99, 1.01, 0.9978},
	{"pH", "ph", "pH", 2.5, 4.5, 3.51},
	{"sulphates", "sulphates", "Sulphates", 0.3, 2.0, 0.56},
	{"alcohol", "alcohol", "Alcohol", 8.0, 15.0, 9.4},
}

// Features returns every feature in column order.
func Features() []Feature {
	out := make([]Feature, NumFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// ColumnNames returns the dataset column names in feature order.
func ColumnNames() []string {
	out := make([]string, NumFeatures)
	for i := range featureTable {
		out[i] = featureTable[i].column
	}
	return out
}

// Valid reports whether f is one of the eleven features.
func (f Feature) Valid() bool {
	return f >= 0 && int(f) < NumFeatures
}

// Column returns the dataset column name, e.g. "fixed acidity".
func (f Feature) Column() string {
	if !f.Valid() {
		return ""
	}
	return featureTable[f].column
}

// Key returns the snake_case identifier used for flags and JSON fields.
func (f Feature) Key() string {
	if !f.Valid() {
		return ""
	}
	return featureTable[f].key
}

// Label returns a short human readable name.
func (f Feature) Label() string {
	if !f.Valid() {
		return ""
	}
	return featureTable[f].label
}

// Range returns the typical physical bounds of the measurement. They are hints
// for interactive input and never used to reject a sample.
func (f Feature) Range() (lo, hi float64) {
	if !f.Valid() {
		return 0, 0
	}
	return featureTable[f].min, featureTable[f].max
}

func (f Feature) String() string {
	return f.Column()
}

// ParseFeature resolves a column name or key, ignoring case and surrounding space.
func ParseFeature(name string) (Feature, bool) {
	name = strings.TrimSpace(name)
	for i, info := range featureTable {
		if strings.EqualFold(name, info.column) || strings.EqualFold(name, info.key) {
			return Feature(i), true
		}
	}
	return -1, false
}
