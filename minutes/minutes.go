// Package minutes reads meeting notes kept on a single Notion page.
//
// Each meeting is a heading_1 block ("第12回 定例 2023年06月19日"); its notes live
// under a heading_2 containing "議事メモ" as nested bulleted or numbered list items.
package minutes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/quailyquaily/notionbolt/internal/notionclient"
)

const notesHeading = "議事メモ"

var datePattern = regexp.MustCompile(`(\d{4})[年\-/](\d{1,2})[月\-/](\d{1,2})日?`)

type BlockLister interface {
	ListAllBlockChildren(ctx context.Context, blockID string) ([]notionclient.Block, error)
}

type Session struct {
	Title   string
	Date    string
	BlockID string
}

type Reader struct {
	blocks BlockLister
	pageID string
	// MaxDepth bounds the recursion into nested list items.
	MaxDepth int
}

func NewReader(blocks BlockLister, pageID string) (*Reader, error) {
	if blocks == nil {
		return nil, fmt.Errorf("block lister is required")
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, fmt.Errorf("minutes page id is required")
	}
	return &Reader{blocks: blocks, pageID: pageID, MaxDepth: 8}, nil
}

// Sessions lists the dated meetings on the page in page order.
func (r *Reader) Sessions(ctx context.Context) ([]Session, error) {
	top, err := r.blocks.ListAllBlockChildren(ctx, r.pageID)
	if err != nil {
		return nil, fmt.Errorf("list minutes page: %w", err)
	}
	var out []Session
	for _, b := range top {
		if b.Type != "heading_1" {
			continue
		}
		title, _ := b.Text()
		date := sessionDate(title)
		if date == "" {
			continue
		}
		out = append(out, Session{Title: title, Date: date, BlockID: b.ID})
	}
	return out, nil
}

// Notes returns the note lines of every meeting whose title or date contains target.
func (r *Reader) Notes(ctx context.Context, target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}
	top, err := r.blocks.ListAllBlockChildren(ctx, r.pageID)
	if err != nil {
		return nil, fmt.Errorf("list minutes page: %w", err)
	}
	var lines []string
	for _, b := range top {
		if b.Type != "heading_1" {
			continue
		}
		title, _ := b.Text()
		if !strings.Contains(title, target) && sessionDate(title) != target {
			continue
		}
		sections, err := r.blocks.ListAllBlockChildren(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("list session %q: %w", title, err)
		}
		for _, sec := range sections {
			if sec.Type != "heading_2" {
				continue
			}
			if heading, _ := sec.Text(); !strings.Contains(heading, notesHeading) {
				continue
			}
			if lines, err = r.collect(ctx, sec.ID, lines, 0); err != nil {
				return nil, err
			}
		}
	}
	return lines, nil
}

func (r *Reader) collect(ctx context.Context, blockID string, lines []string, depth int) ([]string, error) {
	if depth >= r.MaxDepth {
		return lines, nil
	}
	children, err := r.blocks.ListAllBlockChildren(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("list block %s: %w", blockID, err)
	}
	for _, c := range children {
		if text := listItemText(c); text != "" {
			lines = append(lines, text)
		}
		if c.HasChildren {
			if lines, err = r.collect(ctx, c.ID, lines, depth+1); err != nil {
				return nil, err
			}
		}
	}
	return lines, nil
}

func listItemText(b notionclient.Block) string {
	if b.Type != "bulleted_list_item" && b.Type != "numbered_list_item" {
		return ""
	}
	text, _ := b.Text()
	return strings.TrimSpace(strings.ReplaceAll(text, "　", " "))
}

// sessionDate extracts the first date of a heading as YYYY-MM-DD.
// 2024年5月3日, 2024-5-3 and 2024/05/03 all give 2024-05-03.
func sessionDate(title string) string {
	m := datePattern.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
