package services

import (
	"bytes"
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
)

// Transfer formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	exportSheet    = "Blogs"
	listSeparator  = ";"
	importBatchMax = 200
)

var exportColumns = []string{
	"id", "title", "content", "author", "state",
	"like", "dislike", "likes_info", "dislikes_info",
	"created_at", "updated_at",
}

// ExportFile is a rendered export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ImportSummary reports the outcome of an import.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Problems []string `json:"problems,omitempty"`
}

// FormatFromFilename derives the transfer format from a file extension.
func FormatFromFilename(name string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Export renders every blog visible to actor, ordered by identifier.
func (s *BlogService) Export(ctx context.Context, actor Actor, format string) (*ExportFile, error) {
	ctx = ensureContext(ctx)
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatCSV && format != FormatXLSX {
		return nil, ErrUnsupportedFormat
	}

	blogs, ok := s.cache.Blogs(ctx)
	if ok {
		blogs = filterBlogs(blogs, actor.Role, "")
	} else {
		blogs = []models.Blog{}
		if err := s.visibleBlogs(ctx, actor, "").Order("id ASC").Find(&blogs).Error; err != nil {
			return nil, fmt.Errorf("blog service: export: %w", err)
		}
		s.cache.populate(ctx, CollectionBlogs)
	}

	rows := make([][]string, 0, len(blogs)+1)
	rows = append(rows, exportColumns)
	for _, blog := range blogs {
		rows = append(rows, blogRow(blog))
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	file := &ExportFile{Rows: len(blogs)}
	var err error
	switch format {
	case FormatCSV:
		file.Filename = "blogs-" + stamp + ".csv"
		file.ContentType = "text/csv; charset=utf-8"
		file.Data, err = encodeCSV(rows)
	case FormatXLSX:
		file.Filename = "blogs-" + stamp + ".xlsx"
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		file.Data, err = encodeXLSX(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("blog service: export: %w", err)
	}

	s.log.Info("blogs exported", zap.String("format", format), zap.Int("rows", file.Rows))
	return file, nil
}

func blogRow(blog models.Blog) []string {
	return []string{
		blog.ID,
		blog.Title,
		blog.Content,
		blog.AuthorID,
		strconv.Itoa(blog.State),
		strconv.Itoa(blog.Like),
		strconv.Itoa(blog.Dislike),
		strings.Join(blog.LikesInfo, listSeparator),
		strings.Join(blog.DislikesInfo, listSeparator),
		blog.CreatedAt.UTC().Format(time.RFC3339),
		blog.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeXLSX(rows [][]string) ([]byte, error) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName(book.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, value := range row {
			values[j] = value
		}
		if err := book.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func decodeXLSX(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = book.Close() }()
	return book.GetRows(book.GetSheetName(0))
}

// Import reads blogs from a csv or xlsx file chosen by the file name. The
// header row selects columns by name; title, content and author are required
// and rows whose author does not exist are skipped. Imported blogs receive new
// identifiers and voters that exist get the blog added to their lists.
func (s *BlogService) Import(ctx context.Context, actor Actor, filename string, r io.Reader) (*ImportSummary, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return nil, ErrBlogUpdateForbidden
	}
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = decodeCSV(r)
	case FormatXLSX:
		rows, err = decodeXLSX(r)
	}
	if err != nil {
		return nil, ErrUnsupportedFormat.WithMessage("File could not be parsed").WithInternal(err)
	}
	if len(rows) == 0 {
		return &ImportSummary{}, nil
	}

	header := indexHeader(rows[0])
	for _, required := range []string{"title", "content", "author"} {
		if _, ok := header[required]; !ok {
			return nil, ErrUnsupportedFormat.WithMessage(fmt.Sprintf("Missing column %q", required))
		}
	}

	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("blog service: import: load users: %w", err)
	}
	known := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		known[id] = struct{}{}
	}

	summary := &ImportSummary{}
	var problems error
	blogs := make([]models.Blog, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		blog, err := parseBlogRow(header, row, known)
		if err != nil {
			summary.Skipped++
			problems = multierr.Append(problems, fmt.Errorf("row %d: %w", line, err))
			continue
		}
		blogs = append(blogs, *blog)
	}

	if len(blogs) > 0 {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.CreateInBatches(&blogs, importBatchMax).Error; err != nil {
				return fmt.Errorf("insert blogs: %w", err)
			}
			return attachVoters(tx, blogs)
		})
		if err != nil {
			return nil, fmt.Errorf("blog service: import: %w", err)
		}
		s.cache.afterWrite(ctx, CollectionBlogs, CollectionUsers)
	}

	summary.Imported = len(blogs)
	for _, problem := range multierr.Errors(problems) {
		summary.Problems = append(summary.Problems, problem.Error())
	}
	s.log.Info("blogs imported",
		zap.String("format", format),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func indexHeader(row []string) map[string]int {
	index := make(map[string]int, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		switch key {
		case "author_id", "authorid":
			key = "author"
		case "likesinfo":
			key = "likes_info"
		case "dislikesinfo":
			key = "dislikes_info"
		case "createdat":
			key = "created_at"
		case "updatedat":
			key = "updated_at"
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func parseBlogRow(header map[string]int, row []string, knownUsers map[string]struct{}) (*models.Blog, error) {
	field := func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	title, content, author := field("title"), field("content"), field("author")
	if title == "" || content == "" || author == "" {
		return nil, errors.New("title, content and author are required")
	}
	if _, ok := knownUsers[author]; !ok {
		return nil, fmt.Errorf("unknown author %q", author)
	}

	state := models.StatePublished
	if raw := field("state"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || !validState(parsed) {
			return nil, fmt.Errorf("invalid state %q", raw)
		}
		state = parsed
	}

	blog := &models.Blog{
		Title:        title,
		Content:      content,
		AuthorID:     author,
		State:        state,
		LikesInfo:    knownOnly(splitList(field("likes_info")), knownUsers),
		DislikesInfo: knownOnly(splitList(field("dislikes_info")), knownUsers),
	}
	blog.DislikesInfo = slices.DeleteFunc(blog.DislikesInfo, func(id string) bool { return blog.LikedBy(id) })
	recount(blog)

	if created, ok := parseTimestamp(field("created_at")); ok {
		blog.CreatedAt = created
	}
	if updated, ok := parseTimestamp(field("updated_at")); ok {
		blog.UpdatedAt = updated
	}
	return blog, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return normaliseIDs(strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' }))
}

func knownOnly(ids []string, known map[string]struct{}) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	for _, id := range ids {
		if _, ok := known[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// parseTimestamp accepts RFC 3339 or Unix milliseconds.
func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// attachVoters adds imported blogs to the vote lists of their voters.
func attachVoters(tx *gorm.DB, blogs []models.Blog) error {
	liked := map[string][]string{}
	disliked := map[string][]string{}
	for _, blog := range blogs {
		for _, uid := range blog.LikesInfo {
			liked[uid] = append(liked[uid], blog.ID)
		}
		for _, uid := range blog.DislikesInfo {
			disliked[uid] = append(disliked[uid], blog.ID)
		}
	}
	voterIDs := make([]string, 0, len(liked)+len(disliked))
	for uid := range liked {
		voterIDs = append(voterIDs, uid)
	}
	for uid := range disliked {
		voterIDs = append(voterIDs, uid)
	}
	voterIDs = normaliseIDs(voterIDs)
	if len(voterIDs) == 0 {
		return nil
	}
	slices.SortFunc(voterIDs, cmp.Compare[string])

	var voters []models.User
	if err := tx.Omit("profile_image").Where("id IN ?", voterIDs).Find(&voters).Error; err != nil {
		return fmt.Errorf("load voters: %w", err)
	}
	for i := range voters {
		for _, blogID := range liked[voters[i].ID] {
			voters[i].LikedPosts = appendUnique(voters[i].LikedPosts, blogID)
		}
		for _, blogID := range disliked[voters[i].ID] {
			voters[i].DislikedPosts = appendUnique(voters[i].DislikedPosts, blogID)
		}
		if err := saveUserVotes(tx, &voters[i]); err != nil {
			return err
		}
	}
	return nil
}
