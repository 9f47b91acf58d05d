// Package wikistore persists wiki documents, the unit of storage every
// subreddit-scoped configuration and note document lives in. A document is
// identified by (subreddit, page); writes replace the whole body and record
// a revision.
package wikistore

// Page is the current body of one wiki document.
type Page struct {
	Subreddit        string `gorm:"column:subreddit;primaryKey;size:100;not null"`
	Name             string `gorm:"column:page;primaryKey;size:190;not null"`
	Body             string `gorm:"column:body;type:text;not null"`
	IsJSON           bool   `gorm:"column:is_json;not null;default:false"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Page) TableName() string {
	return "wiki_pages"
}

// Revision is an append-only history entry for a wiki document write.
type Revision struct {
	RevisionID       string `gorm:"column:revision_id;primaryKey;size:190;not null"`
	Subreddit        string `gorm:"column:subreddit;size:100;not null;index:idx_revisions_page,priority:1"`
	Name             string `gorm:"column:page;size:190;not null;index:idx_revisions_page,priority:2"`
	Body             string `gorm:"column:body;type:text;not null"`
	Author           string `gorm:"column:author;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_revisions_page,priority:3"`
}

// TableName provides the explicit table binding for GORM.
func (Revision) TableName() string {
	return "wiki_revisions"
}
