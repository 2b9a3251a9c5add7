package chunker

import (
	"context"
	"encoding/json"
	"strings"
)

// notebook is the subset of the Jupyter format the chunker reads.
type notebook struct {
	Cells    []notebookCell `json:"cells"`
	Metadata struct {
		Kernelspec struct {
			Language string `json:"language"`
		} `json:"kernelspec"`
		LanguageInfo struct {
			Name string `json:"name"`
		} `json:"language_info"`
	} `json:"metadata"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

// text returns the cell source, which the format allows as a string or a
// list of lines.
func (c notebookCell) text() string {
	var s string
	if err := json.Unmarshal(c.Source, &s); err == nil {
		return s
	}
	var parts []string
	if err := json.Unmarshal(c.Source, &parts); err == nil {
		return strings.Join(parts, "")
	}
	return ""
}

// notebookSegmenter extracts no definitions; its skeleton is the notebook
// flattened into markdown with code cells fenced.
type notebookSegmenter struct{}

func (notebookSegmenter) Language() Language { return LangNotebook }

func (notebookSegmenter) sealed() {}

func (notebookSegmenter) Segment(_ context.Context, src []byte) (Parsed, bool) {
	var nb notebook
	if err := json.Unmarshal(src, &nb); err != nil || nb.Cells == nil {
		return Parsed{}, false
	}
	lang := nb.Metadata.LanguageInfo.Name
	if lang == "" {
		lang = nb.Metadata.Kernelspec.Language
	}
	if lang == "" {
		lang = "python"
	}

	var parts []string
	for _, cell := range nb.Cells {
		text := cell.text()
		switch cell.CellType {
		case "markdown", "raw":
			parts = append(parts, text)
		case "code":
			if strings.TrimSpace(text) == "" {
				continue
			}
			parts = append(parts, "```"+lang+"\n"+text+"\n```")
		}
	}
	return Parsed{Skeleton: strings.Join(parts, "\n\n")}, true
}
