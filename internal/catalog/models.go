// Package catalog implements the Catalog Store: the durable relational
// store of libraries, folders, entities, tags and plugins, with
// cooperating full-text and vector indexes kept in sync with each entity's
// metadata_text projection.
package catalog

import "time"

// FileTypeGroup classifies an Entity's underlying file. Only "image"
// entities participate in search.
type FileTypeGroup string

const (
	FileTypeImage FileTypeGroup = "image"
	FileTypeVideo FileTypeGroup = "video"
	FileTypeOther FileTypeGroup = "other"
)

// MetadataSource identifies who produced an EntityMetadata entry.
type MetadataSource string

const (
	SourceUserGenerated   MetadataSource = "user_generated"
	SourceSystemGenerated MetadataSource = "system_generated"
	SourcePluginGenerated MetadataSource = "plugin_generated"
)

// MetadataDataType tags how an EntityMetadata value should be interpreted.
type MetadataDataType string

const (
	DataTypeJSON   MetadataDataType = "json"
	DataTypeText   MetadataDataType = "text"
	DataTypeNumber MetadataDataType = "number"
)

// Library is a logical grouping of folders, created explicitly and never
// auto-deleted.
type Library struct {
	ID      int64
	Name    string
	Folders []Folder
	Plugins []Plugin
}

// Folder is a watched root directory under a Library.
type Folder struct {
	ID             int64
	LibraryID      int64
	Path           string
	LastModifiedAt time.Time
	Type           string
}

// Entity is one indexed file, typically a screenshot.
type Entity struct {
	ID                 int64
	LibraryID          int64
	FolderID           int64
	Filepath           string
	Filename           string
	Size               int64
	FileType           string
	FileTypeGroup      FileTypeGroup
	FileCreatedAt      time.Time
	FileLastModifiedAt time.Time
	LastScanAt         *time.Time
	FTSIndexedAt       *time.Time
	VecIndexedAt       *time.Time
	Tags               []Tag
	Metadata           []EntityMetadata
}

// EntityMetadata is one key/value entry attached to an Entity.
// (entity_id, key) is unique within a single entity's metadata set.
type EntityMetadata struct {
	EntityID int64
	Key      string
	Value    string
	Source   string
	DataType MetadataDataType
}

// Tag is a named label attachable to entities.
type Tag struct {
	ID   int64
	Name string
}

// EntityTag is the many-to-many join between entities and tags.
type EntityTag struct {
	EntityID int64
	TagID    int64
	Source   MetadataSource
}

// Plugin is a registered processor (OCR, caption, embedding, ...).
type Plugin struct {
	ID          int64
	Name        string
	Description string
	WebhookURL  string
}

// Filters narrows full-text and vector search.
type Filters struct {
	LibraryIDs []int64
	StartUnix  *int64
	EndUnix    *int64
}
