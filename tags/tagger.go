// Package tags writes machine-readable AI-training opt-out declarations
// and the watermark signature into ID3v2 tags. Tagging operates on the
// encoded container only; the watermark engine never touches tag storage.
package tags

import (
	"fmt"
	"os"
	"time"

	"github.com/bogem/id3v2/v2"
)

// Frame descriptions for the user-defined TXXX declarations.
const (
	descOptOut    = "AI_TRAINING_OPTOUT"
	descSignature = "WATERMARK_SIGNATURE"
	descLevel     = "PROTECTION_LEVEL"
)

// Declaration is the opt-out record attached to a protected file.
type Declaration struct {
	Artist    string
	Title     string
	Signature string
	Level     string
	Timestamp time.Time
}

// WriteOptOut returns a copy of mp3Data with the opt-out declaration
// embedded in its ID3v2 tag. Existing audio frames are untouched; existing
// tag fields are preserved unless the declaration overrides them.
// id3v2.Open works on files, so tagging goes through a temp file.
func WriteOptOut(mp3Data []byte, d Declaration) ([]byte, error) {
	tempFile, err := os.CreateTemp("", "tagged_*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}()

	if _, err := tempFile.Write(mp3Data); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %v", err)
	}
	tempFile.Close()

	tag, err := id3v2.Open(tempFile.Name(), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to parse ID3v2 tag: %v", err)
	}

	if d.Artist != "" {
		tag.SetArtist(d.Artist)
	}
	if d.Title != "" {
		tag.SetTitle(d.Title)
	}
	tag.AddFrame(tag.CommonID("Copyright message"), id3v2.TextFrame{
		Encoding: id3v2.EncodingUTF8,
		Text:     fmt.Sprintf("(c) %d %s. AI training prohibited.", d.Timestamp.Year(), d.Artist),
	})
	tag.AddFrame(tag.CommonID("User defined text information frame"), id3v2.UserDefinedTextFrame{
		Encoding:    id3v2.EncodingUTF8,
		Description: descOptOut,
		Value:       "noai",
	})
	if d.Signature != "" {
		tag.AddFrame(tag.CommonID("User defined text information frame"), id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: descSignature,
			Value:       d.Signature,
		})
	}
	if d.Level != "" {
		tag.AddFrame(tag.CommonID("User defined text information frame"), id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: descLevel,
			Value:       d.Level,
		})
	}
	tag.AddFrame(tag.CommonID("Comments"), id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: "opt-out",
		Text:        "This recording carries a machine-readable AI training opt-out declaration.",
	})

	if err := tag.Save(); err != nil {
		tag.Close()
		return nil, fmt.Errorf("failed to save tag: %v", err)
	}
	tag.Close()

	tagged, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read tagged MP3: %v", err)
	}
	return tagged, nil
}

// ReadDeclaration extracts a previously written declaration, reporting
// whether the opt-out frame was present.
func ReadDeclaration(mp3Data []byte) (*Declaration, bool, error) {
	tempFile, err := os.CreateTemp("", "declaration_*.mp3")
	if err != nil {
		return nil, false, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}()

	if _, err := tempFile.Write(mp3Data); err != nil {
		return nil, false, fmt.Errorf("failed to write temp file: %v", err)
	}
	tempFile.Close()

	tag, err := id3v2.Open(tempFile.Name(), id3v2.Options{Parse: true})
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse ID3v2 tag: %v", err)
	}
	defer tag.Close()

	d := &Declaration{
		Artist: tag.Artist(),
		Title:  tag.Title(),
	}
	found := false
	for _, frame := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		udt, ok := frame.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		switch udt.Description {
		case descOptOut:
			found = udt.Value == "noai"
		case descSignature:
			d.Signature = udt.Value
		case descLevel:
			d.Level = udt.Value
		}
	}
	return d, found, nil
}
