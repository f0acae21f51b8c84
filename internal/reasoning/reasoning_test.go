package reasoning

import (
	"strings"
	"testing"
	"time"
)

func TestBuildSignalType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "percentage is metric", text: "Margins improved 12% quarter on quarter", want: SignalMetric},
		{name: "revenue is metric", text: "Total revenue reached record levels", want: SignalMetric},
		{name: "how to is instruction", text: "How to configure the reporting dashboard", want: SignalInstruction},
		{name: "forecast is insight", text: "Demand is expected to soften in spring", want: SignalInsight},
		{name: "plain prose is narrative", text: "The team met in Lisbon for the offsite", want: SignalNarrative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Build(tt.text, "txt", "abc")
			if b.SignalType != tt.want {
				t.Errorf("SignalType = %q, want %q", b.SignalType, tt.want)
			}
		})
	}
}

func TestBuildBusinessFunction(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "finance", text: "Gross profit held steady", want: "finance"},
		{name: "ops", text: "The supply chain recovered", want: "ops"},
		{name: "marketing", text: "The brand campaign launched in May", want: "marketing"},
		{name: "legal", text: "New compliance duties apply", want: "legal"},
		{name: "tech", text: "The api gateway was upgraded", want: "tech"},
		{name: "hr", text: "Talent retention improved", want: "hr"},
		{name: "general", text: "The weather stayed mild", want: "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Build(tt.text, "txt", "abc")
			if b.BusinessFunction != tt.want {
				t.Errorf("BusinessFunction = %q, want %q", b.BusinessFunction, tt.want)
			}
		})
	}
}

func TestBuildTimeHorizon(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "forecast", text: "Output forecast to double", want: "forecast"},
		{name: "current", text: "Inventory is currently tight", want: "current"},
		{name: "historical", text: "Demand was weaker than hoped", want: "historical"},
		{name: "timeless", text: "Quality comes from discipline", want: "timeless"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Build(tt.text, "txt", "abc")
			if b.TimeHorizon != tt.want {
				t.Errorf("TimeHorizon = %q, want %q", b.TimeHorizon, tt.want)
			}
		})
	}
}

func TestBuildOriginAuthority(t *testing.T) {
	for _, st := range []string{"pdf", "docx", "csv", "xls", "xlsx"} {
		if b := Build("text", st, "abc"); b.OriginAuthority != "primary_source" {
			t.Errorf("source %q: OriginAuthority = %q, want primary_source", st, b.OriginAuthority)
		}
	}
	for _, st := range []string{"txt", "json", "rss", "api", ""} {
		if b := Build("text", st, "abc"); b.OriginAuthority != "secondary_source" {
			t.Errorf("source %q: OriginAuthority = %q, want secondary_source", st, b.OriginAuthority)
		}
	}
}

func TestBuildGranularity(t *testing.T) {
	short := "short summary"
	medium := strings.Repeat("m", 500)
	long := strings.Repeat("l", 1500)

	if b := Build(short, "txt", "abc"); b.Granularity != "executive_summary" {
		t.Errorf("short text Granularity = %q, want executive_summary", b.Granularity)
	}
	if b := Build(medium, "txt", "abc"); b.Granularity != "tactical_detail" {
		t.Errorf("medium text Granularity = %q, want tactical_detail", b.Granularity)
	}
	if b := Build(long, "txt", "abc"); b.Granularity != "raw_data" {
		t.Errorf("long text Granularity = %q, want raw_data", b.Granularity)
	}
}

func TestBuildRegulatedAndLineage(t *testing.T) {
	b := Build("This data falls under GDPR rules", "pdf", "deadbeef")

	if !b.PotentiallyRegulated {
		t.Error("PotentiallyRegulated = false, want true")
	}
	if b.DataLineageID != "deadbeef" {
		t.Errorf("DataLineageID = %q, want deadbeef", b.DataLineageID)
	}
	if b.ExtractionConfidence != 0.90 {
		t.Errorf("ExtractionConfidence = %v, want 0.90", b.ExtractionConfidence)
	}

	ts, err := time.Parse("2006-01-02T15:04:05.000000Z", b.ExtractionTimestamp)
	if err != nil {
		t.Fatalf("ExtractionTimestamp %q did not parse: %v", b.ExtractionTimestamp, err)
	}
	if d := time.Since(ts); d < 0 || d > time.Minute {
		t.Errorf("ExtractionTimestamp %v not close to now", ts)
	}
}
