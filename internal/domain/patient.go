package domain

import (
	"math"
	"strings"
)

// Lab codes recognised by the rule evaluators. Lookups are case-insensitive.
const (
	LabFBS           = "fbs"
	LabHbA1c         = "hba1c"
	LabTSH           = "tsh"
	LabFreeT4        = "ft4"
	LabCortisolAM    = "cortisol_am"
	LabTriglycerides = "triglycerides"
	LabHDL           = "hdl"
)

// Symptom names used by the rule evaluators.
const (
	SymptomFatigue               = "fatigue"
	SymptomWeightGain            = "weight_gain"
	SymptomMenstrualIrregularity = "menstrual_irregularity"
	SymptomHirsutism             = "hirsutism"
	SymptomAcneSeverity          = "acne_severity"
)

// SexFemale is the only sex value that enables the female-specific pathway.
const SexFemale = "female"

// PatientRecord is the structured input to one reasoning call.
type PatientRecord struct {
	Demographics Demographics `json:"demographics"`
	Vitals       Vitals       `json:"vitals"`
	Labs         Labs         `json:"labs"`
	Symptoms     Symptoms     `json:"symptoms"`
}

// Demographics holds age and sex. Absent values are nil / empty.
type Demographics struct {
	Age *int   `json:"age,omitempty"`
	Sex string `json:"sex,omitempty"`
}

// BloodPressure holds systolic and diastolic pressure in mmHg.
type BloodPressure struct {
	Systolic  *int `json:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty"`
}

// Vitals holds the measured vital signs.
type Vitals struct {
	BloodPressure      BloodPressure `json:"blood_pressure"`
	HeartRate          *int          `json:"heart_rate,omitempty"`
	Weight             *float64      `json:"weight,omitempty"`
	Height             *float64      `json:"height,omitempty"`
	BMI                *float64      `json:"bmi,omitempty"`
	WaistCircumference *float64      `json:"waist_circumference,omitempty"`
}

// Labs maps a lab code to its value. A nil value means "not measured".
type Labs map[string]*float64

// Symptoms maps a symptom name to a boolean or categorical value.
type Symptoms map[string]interface{}

// Get returns the value for a lab code, matching the code case-insensitively.
func (l Labs) Get(code string) *float64 {
	if v, ok := l[code]; ok {
		return v
	}
	for k, v := range l {
		if strings.EqualFold(k, code) {
			return v
		}
	}
	return nil
}

// AnyPresent reports whether at least one lab has a value.
func (l Labs) AnyPresent() bool {
	for _, v := range l {
		if v != nil {
			return true
		}
	}
	return false
}

// Has reports whether the named symptom is truthy.
func (s Symptoms) Has(name string) bool {
	return truthy(s[name])
}

// AnyPresent reports whether at least one symptom is truthy.
func (s Symptoms) AnyPresent() bool {
	for _, v := range s {
		if truthy(v) {
			return true
		}
	}
	return false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// AnyPresent reports whether any vital sign, including the nested blood
// pressure fields, has a value.
func (v Vitals) AnyPresent() bool {
	return v.BloodPressure.Systolic != nil ||
		v.BloodPressure.Diastolic != nil ||
		v.HeartRate != nil ||
		v.Weight != nil ||
		v.Height != nil ||
		v.BMI != nil ||
		v.WaistCircumference != nil
}

// IsFemale reports whether the female-specific pathway applies.
func (d Demographics) IsFemale() bool {
	return d.Sex == SexFemale
}

// WithSexFilteredSymptoms returns a copy of the record in which
// female-specific symptoms are forced to false for anyone not recorded as
// female. The receiver is not modified.
func (p *PatientRecord) WithSexFilteredSymptoms() *PatientRecord {
	out := *p
	out.Symptoms = make(Symptoms, len(p.Symptoms)+2)
	for k, v := range p.Symptoms {
		out.Symptoms[k] = v
	}
	if !p.Demographics.IsFemale() {
		out.Symptoms[SymptomMenstrualIrregularity] = false
		out.Symptoms[SymptomHirsutism] = false
	}
	return &out
}

// CalculateBMI returns weight (kg) over height (cm) squared, rounded to one
// decimal place. It returns nil when either value is missing or height is not
// positive.
func CalculateBMI(weightKg, heightCm *float64) *float64 {
	if weightKg == nil || heightCm == nil || *heightCm <= 0 {
		return nil
	}
	m := *heightCm / 100
	bmi := math.Round(*weightKg/(m*m)*10) / 10
	return &bmi
}

// Validate checks structural constraints on the record. Missing values are
// always acceptable; negative measurements are not.
func (p *PatientRecord) Validate() error {
	if p.Demographics.Age != nil && *p.Demographics.Age < 0 {
		return NewValidationError("demographics.age", "age must be zero or greater", *p.Demographics.Age)
	}
	ints := map[string]*int{
		"vitals.blood_pressure.systolic":  p.Vitals.BloodPressure.Systolic,
		"vitals.blood_pressure.diastolic": p.Vitals.BloodPressure.Diastolic,
		"vitals.heart_rate":               p.Vitals.HeartRate,
	}
	for field, v := range ints {
		if v != nil && *v < 0 {
			return NewValidationError(field, "value must not be negative", *v)
		}
	}
	floats := map[string]*float64{
		"vitals.weight":              p.Vitals.Weight,
		"vitals.height":              p.Vitals.Height,
		"vitals.bmi":                 p.Vitals.BMI,
		"vitals.waist_circumference": p.Vitals.WaistCircumference,
	}
	for field, v := range floats {
		if v != nil && (*v < 0 || math.IsNaN(*v)) {
			return NewValidationError(field, "value must not be negative", *v)
		}
	}
	for code, v := range p.Labs {
		if v != nil && (*v < 0 || math.IsNaN(*v)) {
			return NewValidationError("labs."+code, "lab value must not be negative", *v)
		}
	}
	return nil
}

// DeriveBMI fills an absent BMI from weight and height when both are present.
func (p *PatientRecord) DeriveBMI() {
	if p.Vitals.BMI == nil {
		p.Vitals.BMI = CalculateBMI(p.Vitals.Weight, p.Vitals.Height)
	}
}
