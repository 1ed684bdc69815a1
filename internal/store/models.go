package store

import "time"

// Chapter is one converted source file.
type Chapter struct {
	ID           uint   `gorm:"primaryKey"`
	Title        string `gorm:"not null"`
	Section      string
	PagesCovered string
	ContentHash  string `gorm:"index"`
	CreatedAt    time.Time
	Pages        []Page `gorm:"foreignKey:ChapterID"`
}

// Page is one page group of a chapter.
type Page struct {
	ID        uint   `gorm:"primaryKey"`
	ChapterID uint   `gorm:"index;not null"`
	Marker    string `gorm:"column:page;not null"`
	Position  int
}

// Rubric is one rubric. Top-level rubrics have a nil ParentID; nested ones
// point at their parent. Related rubrics are stored comma-joined.
type Rubric struct {
	ID             uint   `gorm:"primaryKey"`
	PageID         uint   `gorm:"index;not null"`
	ParentID       *uint  `gorm:"index"`
	Title          string `gorm:"column:rubric;not null"`
	RelatedRubrics string
	Position       int
}

// Remedy is one graded remedy of a rubric.
type Remedy struct {
	ID       uint   `gorm:"primaryKey"`
	RubricID uint   `gorm:"index;not null"`
	Name     string `gorm:"not null"`
	Grade    int    `gorm:"not null"`
	Position int
}
