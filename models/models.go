package models

// Word is a single extracted text token. Coordinates are in document space
// with the origin at the top-left corner of the page.
type Word struct {
	Text   string  `json:"text"`
	X0     float64 `json:"x0"`
	Top    float64 `json:"top"`
	X1     float64 `json:"x1"`
	Bottom float64 `json:"bottom"`
}

// PageMeta is the extraction metadata for a single page.
type PageMeta struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height,omitempty"`
	Words  []Word  `json:"words"`
}

// PageImage is a rendered raster of a page as returned by the extraction
// service. Data holds a data URI ("data:image/jpeg;base64,...").
type PageImage struct {
	Page   int    `json:"page"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Data   string `json:"base64"`
}

// SourceBox locates an auto-extracted transaction on its page.
type SourceBox struct {
	Page   int     `json:"page"`
	X0     float64 `json:"x0"`
	Top    float64 `json:"top"`
	X1     float64 `json:"x1"`
	Bottom float64 `json:"bottom"`
}

// Transaction is a parsed financial line item under review.
type Transaction struct {
	ID          int64      `json:"id"`
	SourceID    int64      `json:"source_id,omitempty"`
	Date        string     `json:"date,omitempty"`
	Description string     `json:"description"`
	Installment string     `json:"installment,omitempty"`
	Value       string     `json:"value"`
	Box         *SourceBox `json:"box,omitempty"`
}

// VisualData is the successful payload of a whole-document extraction.
type VisualData struct {
	Filename     string        `json:"filename,omitempty"`
	Images       []PageImage   `json:"images"`
	TextMap      []PageMeta    `json:"text_map"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Page returns the metadata for a page number.
func (v *VisualData) Page(page int) (*PageMeta, bool) {
	for i := range v.TextMap {
		if v.TextMap[i].Page == page {
			return &v.TextMap[i], true
		}
	}
	return nil, false
}

// Image returns the rendered image for a page number.
func (v *VisualData) Image(page int) (*PageImage, bool) {
	for i := range v.Images {
		if v.Images[i].Page == page {
			return &v.Images[i], true
		}
	}
	return nil, false
}

// DocumentData is a raw uploaded document.
type DocumentData struct {
	Filename string
	Data     []byte
	Type     string
}

// SourceInfo describes where a document came from.
type SourceInfo struct {
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// DocumentInfo contains basic information about a cached extraction
type DocumentInfo struct {
	DocumentID string     `json:"document_id"`
	Filename   string     `json:"filename,omitempty"`
	PageCount  int        `json:"page_count"`
	SourceInfo SourceInfo `json:"source_info,omitempty"`
}
