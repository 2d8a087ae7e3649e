package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Variant names, as used in logs, metrics and audit entries.
const (
	VariantManuscript = "manuscript"
	VariantPrint      = "print"
)

// Variant is the manuscript-or-print half of an Edition. Only *Manuscript
// and *Print implement it.
type Variant interface {
	variantName() string
}

// Edition is the logical catalogue record. It is never stored as one row:
// the orchestrator decomposes it across the catalogue tables by Key.
//
// Nil pointers and nil slices mean "not supplied" and leave stored values
// untouched, except Corpus and Shelfmarks, which are always replaced.
type Edition struct {
	Key              string
	ShortTitle       *string
	ShortTitleSource *string
	Notes            *string
	Corpus           []string
	Shelfmarks       []Shelfmark
	Verified         bool

	Variant  Variant
	Elements *Elements // nil when the edition carries no elements metadata
}

// Manuscript holds the fields specific to manuscript editions.
type Manuscript struct {
	YearFrom *int
	YearTo   *int
	Class    *string
	Subclass *string
}

func (*Manuscript) variantName() string { return VariantManuscript }

// Print holds the fields specific to printed editions.
type Print struct {
	Cities     []string
	Year       *string
	Languages  []string
	Editors    []string
	Publishers []string
	Format     *int
	Volumes    *int
	USTCID     *string

	Title        Paratext
	Imprint      Paratext
	Colophon     Paratext
	Frontispiece Paratext
}

func (*Print) variantName() string { return VariantPrint }

// Paratext is a transcribed paratext field with its optional English translation.
type Paratext struct {
	Text    *string
	English *string
}

// Elements is the structural metadata of editions that contain the work itself.
type Elements struct {
	Books             []int
	AdditionalContent []string
}

// Shelfmark is one holding of an edition.
type Shelfmark struct {
	Volume            *int
	Scan              *string
	Shelfmark         *string
	TitlePageImage    *string
	FrontispieceImage *string
	Annotations       *string
	Copyright         *string
}

// VariantName returns "manuscript" or "print", or "" when no variant is set.
func (e *Edition) VariantName() string {
	if e.Variant == nil {
		return ""
	}
	return e.Variant.variantName()
}

// IsManuscript reports whether e is a manuscript edition.
func (e *Edition) IsManuscript() bool {
	_, ok := e.Variant.(*Manuscript)
	return ok
}

// IsElements reports whether e carries elements metadata.
func (e *Edition) IsElements() bool { return e.Elements != nil }

// Validate checks the invariants the orchestrator relies on.
func (e *Edition) Validate() error {
	switch v := e.Variant.(type) {
	case *Manuscript:
		if v == nil {
			return fmt.Errorf("%w: nil manuscript variant", ErrMalformedInput)
		}
	case *Print:
		if v == nil {
			return fmt.Errorf("%w: nil print variant", ErrMalformedInput)
		}
	default:
		return fmt.Errorf("%w: edition has no variant", ErrMalformedInput)
	}

	if e.Elements != nil {
		for _, b := range e.Elements.Books {
			if b <= 0 {
				return fmt.Errorf("%w: book number %d is not positive", ErrMalformedInput, b)
			}
		}
	}
	for i, sm := range e.Shelfmarks {
		if sm.Volume != nil && *sm.Volume < 0 {
			return fmt.Errorf("%w: shelfmark %d has negative volume", ErrMalformedInput, i+1)
		}
	}
	return nil
}

// Translation field names, in the order they are written.
var paratextFields = []string{"title", "imprint", "colophon", "frontispiece"}

func (p *Print) paratext(field string) Paratext {
	switch field {
	case "title":
		return p.Title
	case "imprint":
		return p.Imprint
	case "colophon":
		return p.Colophon
	default:
		return p.Frontispiece
	}
}

func (p *Print) setParatext(field string, pt Paratext) {
	switch field {
	case "title":
		p.Title = pt
	case "imprint":
		p.Imprint = pt
	case "colophon":
		p.Colophon = pt
	default:
		p.Frontispiece = pt
	}
}

// Row builders. Each returns the Fields or Rows one table receives for an
// edition.

func manuscriptItemFields(e *Edition, m *Manuscript) Fields {
	return Fields{
		"short_title":        e.ShortTitle,
		"short_title_source": e.ShortTitleSource,
		"year_from":          itoaPtr(m.YearFrom),
		"year_to":            itoaPtr(m.YearTo),
		"notes":              e.Notes,
	}
}

func manuscriptMetadataFields(m *Manuscript, el *Elements) Fields {
	return Fields{
		"class":          m.Class,
		"subclass":       m.Subclass,
		"elements_books": String(strings.Join(CompressRanges(el.Books), ", ")),
	}
}

func printItemFields(e *Edition, p *Print) Fields {
	var language *string
	if p.Languages != nil {
		upper := make([]string, len(p.Languages))
		for i, l := range p.Languages {
			upper[i] = strings.ToUpper(l)
		}
		language = String(strings.Join(upper, ", "))
	}

	return Fields{
		"city":               joinPtr(p.Cities),
		"short_title":        e.ShortTitle,
		"short_title_source": e.ShortTitleSource,
		"year":               p.Year,
		"language":           language,
		"author_or_editor":   joinPtr(p.Editors),
		"publisher":          joinPtr(p.Publishers),
		"format":             nonZeroItoa(p.Format),
		"volumes":            nonZeroItoa(p.Volumes),
		"ustc_id":            p.USTCID,
		"notes":              e.Notes,
	}
}

func printMetadataFields(el *Elements) Fields {
	return Fields{
		"elements_books":     String(strings.Join(CompressRanges(el.Books), ", ")),
		"additional_content": String(strings.Join(el.AdditionalContent, ", ")),
	}
}

func transcriptionFields(p *Print) Fields {
	f := make(Fields, len(paratextFields))
	for _, name := range paratextFields {
		f[name] = p.paratext(name).Text
	}
	return f
}

func shelfmarkRows(key string, shelfmarks []Shelfmark) []Row {
	rows := make([]Row, 0, len(shelfmarks))
	for _, sm := range shelfmarks {
		row := Row{DefaultKeyField: key}
		setIf(row, "volume", nonZeroItoa(sm.Volume))
		setIf(row, "scan", sm.Scan)
		setIf(row, "title_page_img", sm.TitlePageImage)
		setIf(row, "frontispiece_img", sm.FrontispieceImage)
		setIf(row, "annotations", sm.Annotations)
		setIf(row, "shelf_mark", sm.Shelfmark)
		setIf(row, "copyright", sm.Copyright)
		rows = append(rows, row)
	}
	return rows
}

func translationRows(e *Edition, p *Print) []Row {
	var rows []Row
	for _, name := range paratextFields {
		en := p.paratext(name).English
		if en == nil || *en == "" {
			continue
		}
		rows = append(rows, Row{
			DefaultKeyField: e.Key,
			"field":         name,
			"en":            *en,
			"source":        deref(e.ShortTitleSource),
		})
	}
	return rows
}

func corpusFields(corpus []string) Fields {
	return Fields{"study": String(strings.Join(corpus, ", "))}
}

// reviewTimeFormat matches JavaScript's Date.toISOString.
const reviewTimeFormat = "2006-01-02T15:04:05.000Z"

func reviewFields(user string, at time.Time) Fields {
	return Fields{
		"researcher": String(user),
		"timestamp":  String(at.UTC().Format(reviewTimeFormat)),
	}
}

// Recomposition. Inputs are the rows for one key, nil when absent.

type editionRows struct {
	manuscriptItem *Row
	manuscriptMeta *Row
	printItem      *Row
	printMeta      *Row
	transcription  *Row
	corpus         *Row
	translations   []Row
	shelfmarks     []Row
	reviewed       bool
}

func (r editionRows) edition(key string) (*Edition, error) {
	var item Row
	switch {
	case r.manuscriptItem != nil:
		item = *r.manuscriptItem
	case r.printItem != nil:
		item = *r.printItem
	default:
		return nil, fmt.Errorf("%w: %s", ErrEditionNotFound, key)
	}

	e := &Edition{
		Key:              key,
		ShortTitle:       String(item["short_title"]),
		ShortTitleSource: String(item["short_title_source"]),
		Notes:            String(item["notes"]),
		Corpus:           []string{},
		Shelfmarks:       []Shelfmark{},
		Verified:         r.reviewed,
	}
	if r.corpus != nil {
		e.Corpus = splitList((*r.corpus)["study"])
	}
	for _, row := range r.shelfmarks {
		e.Shelfmarks = append(e.Shelfmarks, Shelfmark{
			Volume:            atoiPtr(row["volume"]),
			Scan:              emptyToNil(row["scan"]),
			Shelfmark:         emptyToNil(row["shelf_mark"]),
			TitlePageImage:    emptyToNil(row["title_page_img"]),
			FrontispieceImage: emptyToNil(row["frontispiece_img"]),
			Annotations:       emptyToNil(row["annotations"]),
			Copyright:         emptyToNil(row["copyright"]),
		})
	}

	var meta *Row
	if r.manuscriptItem != nil {
		meta = r.manuscriptMeta
		m := &Manuscript{
			YearFrom: intOrZero(item["year_from"]),
			YearTo:   intOrZero(item["year_to"]),
			Class:    String(""),
		}
		if meta != nil {
			m.Class = String((*meta)["class"])
			m.Subclass = emptyToNil((*meta)["subclass"])
		}
		e.Variant = m
	} else {
		meta = r.printMeta
		p := &Print{
			Cities:     splitList(item["city"]),
			Year:       emptyToNil(item["year"]),
			Languages:  splitList(item["language"]),
			Editors:    splitList(item["author_or_editor"]),
			Publishers: splitList(item["publisher"]),
			Format:     atoiPtr(item["format"]),
			Volumes:    atoiPtr(item["volumes"]),
			USTCID:     emptyToNil(item["ustc_id"]),
		}
		for _, name := range paratextFields {
			var pt Paratext
			if r.transcription != nil {
				pt.Text = emptyToNil((*r.transcription)[name])
			}
			for _, t := range r.translations {
				if t["field"] == name {
					pt.English = emptyToNil(t["en"])
					break
				}
			}
			p.setParatext(name, pt)
		}
		e.Variant = p
	}

	if meta != nil {
		e.Elements = &Elements{
			Books:             ParseRanges((*meta)["elements_books"]),
			AdditionalContent: []string{},
		}
		if r.printItem != nil && r.manuscriptItem == nil {
			e.Elements.AdditionalContent = splitList((*meta)["additional_content"])
		}
	}

	return e, nil
}

// Small conversions shared by the builders above.

func itoaPtr(n *int) *string {
	if n == nil {
		return nil
	}
	return String(strconv.Itoa(*n))
}

// nonZeroItoa treats 0 like absent, as the editor form does for counts.
func nonZeroItoa(n *int) *string {
	if n == nil || *n == 0 {
		return nil
	}
	return String(strconv.Itoa(*n))
}

func joinPtr(items []string) *string {
	if items == nil {
		return nil
	}
	return String(strings.Join(items, ", "))
}

func setIf(row Row, col string, v *string) {
	if v != nil {
		row[col] = *v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func intOrZero(s string) *int {
	if n := atoiPtr(s); n != nil {
		return n
	}
	zero := 0
	return &zero
}

// splitList splits a stored ", "-joined list. An empty cell yields an empty list.
func splitList(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
