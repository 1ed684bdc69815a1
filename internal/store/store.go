// Package store persists converted chapters in SQLite as
// chapter -> page -> rubric (self-referential) -> remedy records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a chapter does not exist.
var ErrNotFound = errors.New("chapter not found")

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates the schema.
// A nil logger silences gorm.
func Open(path string, logger *zap.Logger) (*Store, error) {
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}
	if logger != nil {
		cfg.Logger = gormLogger.New(
			zap.NewStdLog(logger.Named("gorm")),
			gormLogger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	}

	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Chapter{}, &Page{}, &Rubric{}, &Remedy{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveDocument stores doc in one transaction and returns the chapter ID.
func (s *Store) SaveDocument(ctx context.Context, doc repertory.CanonicalDocument, contentHash string) (uint, error) {
	chapter := Chapter{
		Title:        doc.Title,
		Section:      doc.Section,
		PagesCovered: doc.PageInfo,
		ContentHash:  contentHash,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chapter).Error; err != nil {
			return fmt.Errorf("insert chapter: %w", err)
		}
		for i, pg := range doc.Pages {
			page := Page{ChapterID: chapter.ID, Marker: pg.Page, Position: i}
			if err := tx.Create(&page).Error; err != nil {
				return fmt.Errorf("insert page %s: %w", pg.Page, err)
			}
			if err := insertRubrics(tx, pg.Content, page.ID, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return chapter.ID, nil
}

func insertRubrics(tx *gorm.DB, rubrics []repertory.CanonicalRubric, pageID uint, parentID *uint) error {
	for i, r := range rubrics {
		row := Rubric{
			PageID:         pageID,
			ParentID:       parentID,
			Title:          r.Rubric,
			RelatedRubrics: strings.Join(r.RelatedRubrics, ","),
			Position:       i,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert rubric %q: %w", r.Rubric, err)
		}
		if len(r.Remedies) > 0 {
			remedies := make([]Remedy, 0, len(r.Remedies))
			for j, rem := range r.Remedies {
				remedies = append(remedies, Remedy{RubricID: row.ID, Name: rem.Name, Grade: int(rem.Grade), Position: j})
			}
			if err := tx.Create(&remedies).Error; err != nil {
				return fmt.Errorf("insert remedies of %q: %w", r.Rubric, err)
			}
		}
		id := row.ID
		if err := insertRubrics(tx, r.Subcontent, pageID, &id); err != nil {
			return err
		}
	}
	return nil
}

// FindByHash returns the chapter stored with contentHash.
func (s *Store) FindByHash(ctx context.Context, contentHash string) (*Chapter, error) {
	var chapter Chapter
	err := s.db.WithContext(ctx).Where("content_hash = ?", contentHash).First(&chapter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find chapter by hash: %w", err)
	}
	return &chapter, nil
}

// ListChapters returns all chapters without their contents, oldest first.
func (s *Store) ListChapters(ctx context.Context) ([]Chapter, error) {
	var chapters []Chapter
	if err := s.db.WithContext(ctx).Order("id").Find(&chapters).Error; err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

// LoadDocument rebuilds the canonical tree of a stored chapter.
func (s *Store) LoadDocument(ctx context.Context, id uint) (repertory.CanonicalDocument, error) {
	db := s.db.WithContext(ctx)

	var chapter Chapter
	if err := db.Preload("Pages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position")
	}).First(&chapter, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repertory.CanonicalDocument{}, ErrNotFound
		}
		return repertory.CanonicalDocument{}, fmt.Errorf("load chapter %d: %w", id, err)
	}

	pageIDs := make([]uint, 0, len(chapter.Pages))
	for _, p := range chapter.Pages {
		pageIDs = append(pageIDs, p.ID)
	}

	var rubrics []Rubric
	if len(pageIDs) > 0 {
		if err := db.Where("page_id IN ?", pageIDs).Order("position").Order("id").Find(&rubrics).Error; err != nil {
			return repertory.CanonicalDocument{}, fmt.Errorf("load rubrics: %w", err)
		}
	}

	remediesByRubric := make(map[uint][]repertory.CanonicalRemedy)
	if len(rubrics) > 0 {
		rubricIDs := make([]uint, 0, len(rubrics))
		for _, r := range rubrics {
			rubricIDs = append(rubricIDs, r.ID)
		}
		var remedies []Remedy
		if err := db.Where("rubric_id IN ?", rubricIDs).Order("position").Order("id").Find(&remedies).Error; err != nil {
			return repertory.CanonicalDocument{}, fmt.Errorf("load remedies: %w", err)
		}
		for _, rem := range remedies {
			remediesByRubric[rem.RubricID] = append(remediesByRubric[rem.RubricID],
				repertory.CanonicalRemedy{Name: rem.Name, Grade: repertory.Grade(rem.Grade)})
		}
	}

	// Rows are ordered by position, so children end up in insertion order.
	topLevel := make(map[uint][]Rubric)
	children := make(map[uint][]Rubric)
	for _, r := range rubrics {
		if r.ParentID == nil {
			topLevel[r.PageID] = append(topLevel[r.PageID], r)
		} else {
			children[*r.ParentID] = append(children[*r.ParentID], r)
		}
	}

	var build func(rows []Rubric) []repertory.CanonicalRubric
	build = func(rows []Rubric) []repertory.CanonicalRubric {
		out := make([]repertory.CanonicalRubric, 0, len(rows))
		for _, r := range rows {
			cr := repertory.CanonicalRubric{
				Rubric:     r.Title,
				Remedies:   remediesByRubric[r.ID],
				Subcontent: build(children[r.ID]),
			}
			if r.RelatedRubrics != "" {
				cr.RelatedRubrics = strings.Split(r.RelatedRubrics, ",")
			}
			out = append(out, cr)
		}
		return out
	}

	doc := repertory.CanonicalDocument{
		Title:    chapter.Title,
		Section:  chapter.Section,
		PageInfo: chapter.PagesCovered,
	}
	for _, p := range chapter.Pages {
		doc.Pages = append(doc.Pages, repertory.CanonicalPage{
			Page:    p.Marker,
			Content: build(topLevel[p.ID]),
		})
	}
	return doc.Prune(), nil
}

// DeleteChapter removes a chapter with its pages, rubrics and remedies.
func (s *Store) DeleteChapter(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Chapter{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete chapter %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		pageIDs := tx.Model(&Page{}).Select("id").Where("chapter_id = ?", id)
		rubricIDs := tx.Model(&Rubric{}).Select("id").Where("page_id IN (?)", pageIDs)
		if err := tx.Where("rubric_id IN (?)", rubricIDs).Delete(&Remedy{}).Error; err != nil {
			return fmt.Errorf("delete remedies: %w", err)
		}
		if err := tx.Where("page_id IN (?)", pageIDs).Delete(&Rubric{}).Error; err != nil {
			return fmt.Errorf("delete rubrics: %w", err)
		}
		if err := tx.Where("chapter_id = ?", id).Delete(&Page{}).Error; err != nil {
			return fmt.Errorf("delete pages: %w", err)
		}
		return nil
	})
}

// Totals counts stored records.
type Totals struct {
	Chapters int64 `json:"chapters"`
	Rubrics  int64 `json:"rubrics"`
	Remedies int64 `json:"remedies"`
}

func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	db := s.db.WithContext(ctx)
	if err := db.Model(&Chapter{}).Count(&t.Chapters).Error; err != nil {
		return t, fmt.Errorf("count chapters: %w", err)
	}
	if err := db.Model(&Rubric{}).Count(&t.Rubrics).Error; err != nil {
		return t, fmt.Errorf("count rubrics: %w", err)
	}
	if err := db.Model(&Remedy{}).Count(&t.Remedies).Error; err != nil {
		return t, fmt.Errorf("count remedies: %w", err)
	}
	return t, nil
}

// DecodeChapter reads a converted chapter JSON file. Files written before
// page grouping existed carry a top-level "rubrics" list; those are placed
// on a single P1 page.
func DecodeChapter(r io.Reader) (repertory.CanonicalDocument, error) {
	var raw struct {
		repertory.CanonicalDocument
		Rubrics []repertory.CanonicalRubric `json:"rubrics"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return repertory.CanonicalDocument{}, fmt.Errorf("decode chapter: %w", err)
	}
	doc := raw.CanonicalDocument
	if len(doc.Pages) == 0 && len(raw.Rubrics) > 0 {
		doc.Pages = []repertory.CanonicalPage{{Page: "P1", Content: raw.Rubrics}}
	}
	return doc.Prune(), nil
}
