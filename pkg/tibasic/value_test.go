package tibasic

import (
	"math"
	"testing"
)

func TestValueNum(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want float64
	}{
		{"number", Number(2.5), 2.5},
		{"true", Bool(true), 1},
		{"false", Bool(false), 0},
		{"null", Null(), 0},
		{"numeric string", String(" 42 "), 42},
		{"empty string", String(""), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Num(); got != tt.want {
				t.Errorf("Num() = %v, want %v", got, tt.want)
			}
		})
	}

	if !math.IsNaN(String("abc").Num()) {
		t.Error("non-numeric string should convert to NaN")
	}
}

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Number(0), false},
		{Number(-1), true},
		{Number(math.NaN()), false},
		{String(""), false},
		{String("0"), true},
		{Bool(true), true},
		{Null(), false},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%s (%s).Truthy() = %v, want %v", tt.v, tt.v.Kind(), got, tt.want)
		}
	}
}

func TestValueEqualDoesNotCoerce(t *testing.T) {
	if Number(1).Equal(Bool(true)) {
		t.Error("1 should not equal True")
	}
	if !String("A").Equal(String("A")) {
		t.Error("equal strings should compare equal")
	}
	if Number(math.NaN()).Equal(Number(math.NaN())) {
		t.Error("NaN should never be equal")
	}
	if !Null().Equal(Value{}) {
		t.Error("zero Value should be Null")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{1, "1"},
		{-3, "-3"},
		{0.25, "0.25"},
		{1.0 / 3, "0.3333333333333333"},
		{123456789, "123456789"},
		{math.Inf(1), "Infinity"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestParseInput(t *testing.T) {
	if v := ParseInput("5"); !v.Equal(Number(5)) {
		t.Errorf("ParseInput(5) = %s", v)
	}
	if v := ParseInput(`"hi"`); !v.Equal(String("hi")) {
		t.Errorf(`ParseInput("hi") = %s`, v)
	}
	if v := ParseInput(`""`); !v.Equal(String("")) {
		t.Errorf(`ParseInput("") = %s`, v)
	}
	if v := ParseInput(`"`); v.Kind() != KindNumber {
		t.Errorf("a lone quote should not parse as a string, got %s", v.Kind())
	}
}
