package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalogue/internal/core"
)

// editionWire is the flat JSON shape the catalogue editor sends and reads.
// Absent fields decode to nil and leave stored values untouched.
type editionWire struct {
	Key              string          `json:"key"`
	ShortTitle       *string         `json:"shortTitle,omitempty"`
	ShortTitleSource *string         `json:"shortTitleSource,omitempty"`
	Cities           []string        `json:"cities,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
	Corpus           []string        `json:"corpus"`
	Shelfmarks       []shelfmarkWire `json:"shelfmarks"`
	Verified         bool            `json:"verified"`
	IsManuscript     bool            `json:"isManuscript"`

	ManuscriptYearFrom *looseInt `json:"manuscriptYearFrom,omitempty"`
	ManuscriptYearTo   *looseInt `json:"manuscriptYearTo,omitempty"`
	ManuscriptClass    *string   `json:"manuscriptClass,omitempty"`
	ManuscriptSubclass *string   `json:"manuscriptSubclass,omitempty"`

	Year      *looseString `json:"year,omitempty"`
	Languages []string     `json:"languages,omitempty"`
	Editor    []string     `json:"editor,omitempty"`
	Publisher []string     `json:"publisher,omitempty"`
	Format    *looseInt    `json:"format,omitempty"`
	Volumes   *looseInt    `json:"volumes,omitempty"`
	USTCID    *looseString `json:"ustcId,omitempty"`

	Title          *string `json:"title,omitempty"`
	TitleEN        *string `json:"title_EN,omitempty"`
	Imprint        *string `json:"imprint,omitempty"`
	ImprintEN      *string `json:"imprint_EN,omitempty"`
	Colophon       *string `json:"colophon,omitempty"`
	ColophonEN     *string `json:"colophon_EN,omitempty"`
	Frontispiece   *string `json:"frontispiece,omitempty"`
	FrontispieceEN *string `json:"frontispiece_EN,omitempty"`

	IsElements        bool     `json:"isElements"`
	Books             []int    `json:"books,omitempty"`
	AdditionalContent []string `json:"additionalContent,omitempty"`
}

type shelfmarkWire struct {
	Volume          *looseInt `json:"volume,omitempty"`
	Scan            *string   `json:"scan,omitempty"`
	Shelfmark       *string   `json:"shelfmark,omitempty"`
	TitlePageImg    *string   `json:"title_page_img,omitempty"`
	FrontispieceImg *string   `json:"frontispiece_img,omitempty"`
	Annotations     *string   `json:"annotations,omitempty"`
	Copyright       *string   `json:"copyright,omitempty"`
}

// toEdition converts the wire form into a core.Edition.
func (w *editionWire) toEdition() *core.Edition {
	e := &core.Edition{
		Key:              strings.TrimSpace(w.Key),
		ShortTitle:       w.ShortTitle,
		ShortTitleSource: w.ShortTitleSource,
		Notes:            w.Notes,
		Corpus:           w.Corpus,
		Verified:         w.Verified,
	}
	for _, sm := range w.Shelfmarks {
		e.Shelfmarks = append(e.Shelfmarks, core.Shelfmark{
			Volume:            sm.Volume.intPtr(),
			Scan:              sm.Scan,
			Shelfmark:         sm.Shelfmark,
			TitlePageImage:    sm.TitlePageImg,
			FrontispieceImage: sm.FrontispieceImg,
			Annotations:       sm.Annotations,
			Copyright:         sm.Copyright,
		})
	}

	if w.IsManuscript {
		e.Variant = &core.Manuscript{
			YearFrom: w.ManuscriptYearFrom.intPtr(),
			YearTo:   w.ManuscriptYearTo.intPtr(),
			Class:    w.ManuscriptClass,
			Subclass: w.ManuscriptSubclass,
		}
	} else {
		e.Variant = &core.Print{
			Cities:       w.Cities,
			Year:         w.Year.stringPtr(),
			Languages:    w.Languages,
			Editors:      w.Editor,
			Publishers:   w.Publisher,
			Format:       w.Format.intPtr(),
			Volumes:      w.Volumes.intPtr(),
			USTCID:       w.USTCID.stringPtr(),
			Title:        core.Paratext{Text: w.Title, English: w.TitleEN},
			Imprint:      core.Paratext{Text: w.Imprint, English: w.ImprintEN},
			Colophon:     core.Paratext{Text: w.Colophon, English: w.ColophonEN},
			Frontispiece: core.Paratext{Text: w.Frontispiece, English: w.FrontispieceEN},
		}
	}

	if w.IsElements {
		e.Elements = &core.Elements{
			Books:             w.Books,
			AdditionalContent: w.AdditionalContent,
		}
	}
	return e
}

// fromEdition converts a recomposed edition into the wire form.
func fromEdition(e *core.Edition) editionWire {
	w := editionWire{
		Key:              e.Key,
		ShortTitle:       e.ShortTitle,
		ShortTitleSource: e.ShortTitleSource,
		Notes:            e.Notes,
		Corpus:           e.Corpus,
		Verified:         e.Verified,
		Shelfmarks:       make([]shelfmarkWire, 0, len(e.Shelfmarks)),
	}
	for _, sm := range e.Shelfmarks {
		w.Shelfmarks = append(w.Shelfmarks, shelfmarkWire{
			Volume:          toLooseInt(sm.Volume),
			Scan:            sm.Scan,
			Shelfmark:       sm.Shelfmark,
			TitlePageImg:    sm.TitlePageImage,
			FrontispieceImg: sm.FrontispieceImage,
			Annotations:     sm.Annotations,
			Copyright:       sm.Copyright,
		})
	}

	switch v := e.Variant.(type) {
	case *core.Manuscript:
		w.IsManuscript = true
		w.ManuscriptYearFrom = toLooseInt(v.YearFrom)
		w.ManuscriptYearTo = toLooseInt(v.YearTo)
		w.ManuscriptClass = v.Class
		w.ManuscriptSubclass = v.Subclass
	case *core.Print:
		w.Cities = v.Cities
		w.Year = toLooseString(v.Year)
		w.Languages = v.Languages
		w.Editor = v.Editors
		w.Publisher = v.Publishers
		w.Format = toLooseInt(v.Format)
		w.Volumes = toLooseInt(v.Volumes)
		w.USTCID = toLooseString(v.USTCID)
		w.Title, w.TitleEN = v.Title.Text, v.Title.English
		w.Imprint, w.ImprintEN = v.Imprint.Text, v.Imprint.English
		w.Colophon, w.ColophonEN = v.Colophon.Text, v.Colophon.English
		w.Frontispiece, w.FrontispieceEN = v.Frontispiece.Text, v.Frontispiece.English
	}

	if e.Elements != nil {
		w.IsElements = true
		w.Books = e.Elements.Books
		w.AdditionalContent = e.Elements.AdditionalContent
	}
	return w
}

// looseInt accepts a JSON number or a numeric string. An empty string
// decodes to 0.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %q is not a whole number", core.ErrMalformedInput, s)
		}
		*n = looseInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %s is not a whole number", core.ErrMalformedInput, b)
	}
	*n = looseInt(v)
	return nil
}

func (n *looseInt) intPtr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

func toLooseInt(v *int) *looseInt {
	if v == nil {
		return nil
	}
	n := looseInt(*v)
	return &n
}

// looseString accepts a JSON string or number, as years and USTC
// identifiers arrive both ways.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("%w: %s is not text or a number", core.ErrMalformedInput, b)
	}
	*s = looseString(num.String())
	return nil
}

func (s *looseString) stringPtr() *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func toLooseString(v *string) *looseString {
	if v == nil {
		return nil
	}
	s := looseString(*v)
	return &s
}
