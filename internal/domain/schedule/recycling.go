package schedule

import (
	"fmt"
	"strings"
	"time"
)

// RecyclingType is the stream collected in a given week.
type RecyclingType string

const (
	Paper      RecyclingType = "Paper"
	Commingled RecyclingType = "Commingled"
)

func (r RecyclingType) Valid() bool {
	return r == Paper || r == Commingled
}

// Other returns the alternate stream.
func (r RecyclingType) Other() RecyclingType {
	if r == Paper {
		return Commingled
	}
	return Paper
}

func ParseRecyclingType(s string) (RecyclingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paper":
		return Paper, nil
	case "commingled":
		return Commingled, nil
	}
	return "", fmt.Errorf("unknown recycling type %q", s)
}

// RecyclingTypeFor classifies the week of date by parity of whole weeks
// elapsed since anchorMonday, which is known to be anchorType. Dates before
// the anchor use floor division so parity stays consistent.
func RecyclingTypeFor(date, anchorMonday time.Time, anchorType RecyclingType) RecyclingType {
	monday, _ := WeekBounds(date)
	anchor, _ := WeekBounds(anchorMonday)

	// Whole civil days; Duration arithmetic saturates beyond ~292 years.
	days := int((monday.Unix() - anchor.Unix()) / 86400)
	weeks := days / 7
	if days%7 != 0 && days < 0 {
		weeks--
	}

	if weeks%2 == 0 {
		return anchorType
	}
	return anchorType.Other()
}
