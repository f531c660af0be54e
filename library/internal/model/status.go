package model

import (
	"database/sql/driver"
	"fmt"
)

// BookStatus is stored as the label the librarian UI shows and serialized to JSON as a tag.
type BookStatus uint8

const (
	BookStatusUnknown BookStatus = iota
	BookAvailable
	BookBorrowed
	BookLost
	BookDeleted
)

var bookStatusLabels = map[BookStatus]string{
	BookAvailable: "可借阅",
	BookBorrowed:  "已借出",
	BookLost:      "遗失",
	BookDeleted:   "已删除",
}

var bookStatusTags = map[BookStatus]string{
	BookAvailable: "AVAILABLE",
	BookBorrowed:  "BORROWED",
	BookLost:      "LOST",
	BookDeleted:   "DELETED",
}

func (s BookStatus) String() string {
	if tag, ok := bookStatusTags[s]; ok {
		return tag
	}
	return fmt.Sprintf("BookStatus(%d)", uint8(s))
}

func (s BookStatus) Label() string {
	return bookStatusLabels[s]
}

// Terminal statuses can never be borrowed again.
func (s BookStatus) Terminal() bool {
	return s == BookLost || s == BookDeleted
}

func (s BookStatus) Value() (driver.Value, error) {
	label, ok := bookStatusLabels[s]
	if !ok {
		return nil, fmt.Errorf("book status %d has no storage label", uint8(s))
	}
	return label, nil
}

func (s *BookStatus) Scan(src any) error {
	label, err := asString(src)
	if err != nil {
		return fmt.Errorf("scan book status: %w", err)
	}
	for status, l := range bookStatusLabels {
		if l == label {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("scan book status: unknown label %q", label)
}

func (s BookStatus) MarshalText() ([]byte, error) {
	tag, ok := bookStatusTags[s]
	if !ok {
		return nil, fmt.Errorf("book status %d has no tag", uint8(s))
	}
	return []byte(tag), nil
}

func (s *BookStatus) UnmarshalText(b []byte) error {
	for status, tag := range bookStatusTags {
		if tag == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown book status %q", string(b))
}

// Resolution is the terminal disposition of a closed loan. ResolutionNone is stored as NULL.
type Resolution uint8

const (
	ResolutionNone Resolution = iota
	ResolutionOverdueFine
	ResolutionLossFine
	ResolutionLossReplacement
)

var resolutionLabels = map[Resolution]string{
	ResolutionOverdueFine:     "超期罚款处理",
	ResolutionLossFine:        "遗失罚款",
	ResolutionLossReplacement: "新书替换(旧书已删/新书已上架)",
}

var resolutionTags = map[Resolution]string{
	ResolutionNone:            "NONE",
	ResolutionOverdueFine:     "OVERDUE_FINE",
	ResolutionLossFine:        "LOSS_FINE",
	ResolutionLossReplacement: "LOSS_REPLACEMENT",
}

func (r Resolution) String() string {
	if tag, ok := resolutionTags[r]; ok {
		return tag
	}
	return fmt.Sprintf("Resolution(%d)", uint8(r))
}

func (r Resolution) Label() string {
	return resolutionLabels[r]
}

func (r Resolution) Value() (driver.Value, error) {
	if r == ResolutionNone {
		return nil, nil
	}
	label, ok := resolutionLabels[r]
	if !ok {
		return nil, fmt.Errorf("resolution %d has no storage label", uint8(r))
	}
	return label, nil
}

func (r *Resolution) Scan(src any) error {
	if src == nil {
		*r = ResolutionNone
		return nil
	}
	label, err := asString(src)
	if err != nil {
		return fmt.Errorf("scan resolution: %w", err)
	}
	for res, l := range resolutionLabels {
		if l == label {
			*r = res
			return nil
		}
	}
	return fmt.Errorf("scan resolution: unknown label %q", label)
}

func (r Resolution) MarshalText() ([]byte, error) {
	tag, ok := resolutionTags[r]
	if !ok {
		return nil, fmt.Errorf("resolution %d has no tag", uint8(r))
	}
	return []byte(tag), nil
}

// LossResolution is how a lost book is settled.
type LossResolution uint8

const (
	LossUnknown LossResolution = iota
	LossFine
	LossReplacement
)

func (l LossResolution) String() string {
	switch l {
	case LossFine:
		return "FINE"
	case LossReplacement:
		return "REPLACEMENT"
	}
	return fmt.Sprintf("LossResolution(%d)", uint8(l))
}

func (l LossResolution) MarshalText() ([]byte, error) {
	if l != LossFine && l != LossReplacement {
		return nil, fmt.Errorf("unknown loss resolution %d", uint8(l))
	}
	return []byte(l.String()), nil
}

func (l *LossResolution) UnmarshalText(b []byte) error {
	switch string(b) {
	case "FINE":
		*l = LossFine
	case "REPLACEMENT":
		*l = LossReplacement
	default:
		return fmt.Errorf("unknown loss resolution %q", string(b))
	}
	return nil
}

func asString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
