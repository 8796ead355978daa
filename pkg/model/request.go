package model

import (
	"fmt"
	"strings"
	"time"
)

// ReadMode selects how a read request is executed.
type ReadMode string

const (
	ModeFind      ReadMode = "find"
	ModeCount     ReadMode = "count"
	ModeAggregate ReadMode = "aggregate"
)

// ParseReadMode parses a read mode name. The empty string is find.
func ParseReadMode(s string) (ReadMode, error) {
	switch ReadMode(strings.ToLower(s)) {
	case "", ModeFind:
		return ModeFind, nil
	case ModeCount:
		return ModeCount, nil
	case ModeAggregate, "aggregation":
		return ModeAggregate, nil
	}
	return "", Errorf(ErrInvalidOperation, "unknown read mode %q", s)
}

// Collation holds locale-aware string comparison rules.
type Collation struct {
	Locale          string `json:"locale" yaml:"locale"`
	Strength        int    `json:"strength,omitempty" yaml:"strength,omitempty"`
	CaseLevel       bool   `json:"caseLevel,omitempty" yaml:"case_level,omitempty"`
	CaseFirst       string `json:"caseFirst,omitempty" yaml:"case_first,omitempty"`
	NumericOrdering bool   `json:"numericOrdering,omitempty" yaml:"numeric_ordering,omitempty"`
}

// AggregateOptions are passed through to the store's aggregate command.
type AggregateOptions struct {
	AllowDiskUse bool
	BatchSize    int32
	MaxTime      time.Duration
	Collation    *Collation
	Comment      string
	Hint         interface{}
}

// ReadRequest describes one read. It is built per call and never stored.
type ReadRequest struct {
	Mode       ReadMode
	Filter     M
	Projection M
	Sort       D
	Page       *Page
	Collation  *Collation

	// Pipeline is required in aggregate mode and ignored otherwise.
	Pipeline         []M
	AggregateOptions *AggregateOptions
}

// ReadResult carries documents for find and aggregate, and Count for count.
type ReadResult struct {
	Documents []M
	Count     int64
}

// SearchRequest describes a full-text search over a collection with a
// search index.
type SearchRequest struct {
	// Spec is the body of the $search stage.
	Spec         M
	Projection   M
	Sort         D
	Page         *Page
	IncludeCount bool
}

// SearchMetadata is the count record of a counted search.
type SearchMetadata struct {
	Total int64 `json:"total" bson:"total"`
	Page  int64 `json:"page" bson:"page"`
}

// SearchResult holds one page of search hits. Metadata is only set for
// counted searches that matched at least one document.
type SearchResult struct {
	Metadata *SearchMetadata `json:"metadata,omitempty"`
	Data     []M             `json:"data"`
}

// WriteKind selects a single-document write primitive.
type WriteKind string

const (
	InsertOne  WriteKind = "insertOne"
	ReplaceOne WriteKind = "replaceOne"
	UpdateOne  WriteKind = "updateOne"
	UpdateMany WriteKind = "updateMany"
	DeleteOne  WriteKind = "deleteOne"
	DeleteMany WriteKind = "deleteMany"
)

// IsValid checks if the write kind is known.
func (k WriteKind) IsValid() bool {
	switch k {
	case InsertOne, ReplaceOne, UpdateOne, UpdateMany, DeleteOne, DeleteMany:
		return true
	}
	return false
}

// BulkKind selects how the elements of a bulk write are interpreted.
type BulkKind string

const (
	InsertBulk  BulkKind = "insertBulk"
	ReplaceBulk BulkKind = "replaceBulk"
	UpdateBulk  BulkKind = "updateBulk"
	DeleteBulk  BulkKind = "deleteBulk"
	// AllBulk submits elements that are already tagged operation descriptors.
	AllBulk BulkKind = "allBulk"
)

// IsValid checks if the bulk kind is known.
func (k BulkKind) IsValid() bool {
	switch k {
	case InsertBulk, ReplaceBulk, UpdateBulk, DeleteBulk, AllBulk:
		return true
	}
	return false
}

// WriteResult reports the outcome of a single write.
type WriteResult struct {
	InsertedID    interface{} `json:"insertedId,omitempty"`
	MatchedCount  int64       `json:"matchedCount"`
	ModifiedCount int64       `json:"modifiedCount"`
	DeletedCount  int64       `json:"deletedCount"`
	UpsertedCount int64       `json:"upsertedCount"`
	UpsertedID    interface{} `json:"upsertedId,omitempty"`
}

// Affected is the number of documents the write touched.
func (r *WriteResult) Affected() int64 {
	if r == nil {
		return 0
	}
	if r.InsertedID != nil {
		return 1
	}
	return r.ModifiedCount + r.DeletedCount + r.UpsertedCount
}

// BulkResult reports the outcome of a bulk write. On failure it holds the
// partial counts of the operations that were applied.
type BulkResult struct {
	InsertedCount int64                 `json:"insertedCount"`
	MatchedCount  int64                 `json:"matchedCount"`
	ModifiedCount int64                 `json:"modifiedCount"`
	DeletedCount  int64                 `json:"deletedCount"`
	UpsertedCount int64                 `json:"upsertedCount"`
	UpsertedIDs   map[int64]interface{} `json:"upsertedIds,omitempty"`
	// Failed lists the index and message of each failed operation.
	Failed []BulkFailure `json:"failed,omitempty"`
}

// Affected is the number of documents the bulk write touched.
func (r *BulkResult) Affected() int64 {
	if r == nil {
		return 0
	}
	return r.InsertedCount + r.ModifiedCount + r.DeletedCount + r.UpsertedCount
}

// BulkFailure is one failed operation within a bulk write.
type BulkFailure struct {
	Index   int    `json:"index"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f BulkFailure) String() string {
	return fmt.Sprintf("#%d: %s (code %d)", f.Index, f.Message, f.Code)
}
