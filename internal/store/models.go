package store

import (
	"time"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/reasoning"
)

// FileStatus is the lifecycle state of a file record.
type FileStatus string

// File lifecycle states. Uploaded records transition to processing on
// acquire and terminally to processed, duplicate, or failed.
const (
	StatusUploaded   FileStatus = "uploaded"
	StatusProcessing FileStatus = "processing"
	StatusProcessed  FileStatus = "processed"
	StatusDuplicate  FileStatus = "duplicate"
	StatusFailed     FileStatus = "failed"
)

// Ingest source states.
const (
	SourceIdle    = "idle"
	SourceActive  = "active"
	SourcePartial = "partial"
	SourceFailed  = "failed"
)

// DefaultBusinessName is the business assigned when an upload carries
// no business of its own.
const DefaultBusinessName = "Manual Upload Business"

// FileRecord represents one ingestion attempt of a source.
type FileRecord struct {
	ID              string
	BusinessID      *string
	FileName        string
	FileType        string
	FilePath        string
	SourceURL       string
	Metadata        map[string]any
	ParserUsed      string
	Status          FileStatus
	TotalChunks     int
	UniqueChunks    int
	DuplicateChunks int
	DedupRatio      float64
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FileHash returns the whole-file hash stored in metadata, if any.
func (f *FileRecord) FileHash() string {
	if f.Metadata == nil {
		return ""
	}
	h, _ := f.Metadata["file_hash"].(string)
	return h
}

// ChunkRecord is one semantic chunk of one file record.
type ChunkRecord struct {
	ID              string
	FileID          string
	BusinessID      *string
	ChunkIndex      int
	Text            string
	CleanedText     string
	Tokens          int
	SourceType      string
	Metadata        map[string]any
	Confidence      float64
	SemanticHash    string
	GlobalContentID *string
	Reasoning       reasoning.Block
	IsDuplicate     bool
	CreatedAt       time.Time
}

// GlobalEntry is a content-addressed deduplication anchor.
type GlobalEntry struct {
	ID              string
	SemanticHash    string
	CleanedText     string
	RawText         string
	Tokens          int
	BusinessID      *string
	FirstSeenFileID *string
	SourceType      string
	OccurrenceCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Category is a controlled-vocabulary node. (Group, Name) is unique.
type Category struct {
	ID          string
	Name        string
	Group       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EntityLink binds an entity to a (category, subcategory, business)
// tuple with its own deduplication fingerprint.
type EntityLink struct {
	ID            string
	EntityType    string
	EntityID      string
	CategoryID    *string
	SubcategoryID *string
	BusinessID    *string
	Fingerprint   string
	CreatedAt     time.Time
}

// Business is a tenant owning ingested content.
type Business struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// IngestSource carries feed metrics for scheduled pulls.
type IngestSource struct {
	ID            string
	FeedURL       string
	SourceType    string
	ArticlesAdded int
	Partials      int
	Failures      int
	Status        string
	AvgConfidence float64
	LastRunAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SourceStats aggregates metrics across all ingest sources.
type SourceStats struct {
	Sources       int
	ArticlesAdded int
	Partials      int
	Failures      int
	AvgConfidence float64
}
