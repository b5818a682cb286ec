// Package units turns free-text quantity expressions found in product
// listings ("100g", "1.5 kg", "12 fl oz") into a magnitude expressed in a
// single base unit per measurement class.
package units

import (
	"regexp"
	"strconv"
	"strings"
)

// Class is a measurement class. Quantities of the same class can be compared.
type Class string

const (
	Mass         Class = "mass"
	Volume       Class = "volume"
	Length       Class = "length"
	Count        Class = "count"
	Unrecognized Class = "unrecognized"
)

// Quantity is a magnitude expressed in the base unit of its class.
// For Unrecognized quantities Unit holds the opaque unit token.
type Quantity struct {
	Magnitude float64 `json:"magnitude"`
	Class     Class   `json:"class"`
	Unit      string  `json:"unit"`
}

// One is the quantity used when a listing carries no quantity at all.
var One = Quantity{Magnitude: 1, Class: Count, Unit: "item"}

func (q Quantity) String() string {
	return strconv.FormatFloat(q.Magnitude, 'f', -1, 64) + " " + q.Unit
}

// Recognized reports whether the quantity belongs to a known class.
func (q Quantity) Recognized() bool {
	return q.Class != Unrecognized && q.Class != ""
}

type conversion struct {
	class  Class
	factor float64
}

// aliasTable is the source of truth for unit vocabulary.
// It groups the accepted spellings of a unit under its conversion to the base unit.
var aliasTable = []struct {
	conv    conversion
	aliases []string
}{
	{conversion{Mass, 1}, []string{"g", "gram", "grams"}},
	{conversion{Mass, 1000}, []string{"kg", "kilo", "kilos", "kilogram", "kilograms"}},
	{conversion{Mass, 28.35}, []string{"oz", "ounce", "ounces"}},
	{conversion{Mass, 453.59}, []string{"lb", "lbs", "pound", "pounds"}},
	{conversion{Volume, 1}, []string{"ml", "milliliter", "milliliters"}},
	{conversion{Volume, 1000}, []string{"l", "liter", "liters"}},
	{conversion{Volume, 29.57}, []string{"fl oz", "fluid ounce", "fluid ounces"}},
	{conversion{Length, 1}, []string{"cm", "centimeter", "centimeters"}},
	{conversion{Length, 100}, []string{"m", "meter", "meters"}},
	{conversion{Length, 2.54}, []string{"in", "inch", "inches"}},
}

var baseUnits = map[Class]string{
	Mass:   "g",
	Volume: "ml",
	Length: "cm",
	Count:  "item",
}

// unitMap is a reverse map generated from aliasTable for lookups.
var unitMap map[string]conversion

func init() {
	unitMap = make(map[string]conversion)
	for _, row := range aliasTable {
		for _, alias := range row.aliases {
			unitMap[alias] = row.conv
		}
	}
}

// quantityRegex captures a number, the letters right after it and an
// optional second word so that two-word units such as "fl oz" can be matched.
var quantityRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-zA-Z]+)(?:\s+([a-zA-Z]+))?`)

// BaseUnit returns the base unit of a class, or "" for unrecognized classes.
func BaseUnit(c Class) string {
	return baseUnits[c]
}

// Classes lists the recognized measurement classes.
func Classes() []Class {
	return []Class{Mass, Volume, Length, Count}
}

// Match finds the first "<number><unit>" token in s. The returned unit is
// lowercased and is a two-word alias ("fl oz") when the text spells one.
func Match(s string) (number float64, unit string, raw string, ok bool) {
	m := quantityRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, "", "", false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", "", false
	}
	unit = strings.ToLower(m[2])
	if m[3] != "" {
		if pair := unit + " " + strings.ToLower(m[3]); isAlias(pair) {
			unit = pair
		}
	}
	return n, unit, m[1] + " " + unit, true
}

func isAlias(unit string) bool {
	_, ok := unitMap[unit]
	return ok
}

// Normalize parses a quantity expression. It never fails:
// empty input means exactly one item, and input without a number followed by
// letters becomes an opaque unit made of the whole input string.
func Normalize(expression string) Quantity {
	if strings.TrimSpace(expression) == "" {
		return One
	}

	n, unit, _, ok := Match(expression)
	if !ok {
		return Quantity{Magnitude: 1, Class: Unrecognized, Unit: expression}
	}

	conv, known := unitMap[unit]
	if !known {
		return Quantity{Magnitude: n, Class: Unrecognized, Unit: unit}
	}
	return Quantity{Magnitude: n * conv.factor, Class: conv.class, Unit: baseUnits[conv.class]}
}
