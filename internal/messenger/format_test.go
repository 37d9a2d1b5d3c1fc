package messenger

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	got, err := RenderMarkdown("Hello **world**")
	if err != nil {
		t.Fatalf("RenderMarkdown error: %v", err)
	}
	if !strings.Contains(got, "<strong>world</strong>") {
		t.Errorf("RenderMarkdown = %q, want bold world", got)
	}
}

func TestRenderMarkdown_List(t *testing.T) {
	got, err := RenderMarkdown("- one\n- two\n")
	if err != nil {
		t.Fatalf("RenderMarkdown error: %v", err)
	}
	if !strings.Contains(got, "<li>one</li>") || !strings.Contains(got, "<li>two</li>") {
		t.Errorf("RenderMarkdown = %q, want list items", got)
	}
}

func TestPreviewText_StripsMarkup(t *testing.T) {
	got := PreviewText("<p>Hello <b>world</b></p><script>alert(1)</script>", 0)
	if got != "Hello world" {
		t.Errorf("PreviewText = %q, want %q", got, "Hello world")
	}
}

func TestPreviewText_Truncates(t *testing.T) {
	got := PreviewText("<p>one two three four</p>", 7)
	if got != "one two…" {
		t.Errorf("PreviewText = %q, want %q", got, "one two…")
	}
}

func TestPreviewText_PlainText(t *testing.T) {
	got := PreviewText("just plain words", 0)
	if got != "just plain words" {
		t.Errorf("PreviewText = %q", got)
	}
}

func TestExportVCard(t *testing.T) {
	card, err := ExportVCard(Contact{
		UserID:    7,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		Phone:     "+15550001111",
	})
	if err != nil {
		t.Fatalf("ExportVCard error: %v", err)
	}

	for _, want := range []string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"FN:Ada Lovelace",
		"TEL:+15550001111",
		"NICKNAME:ada",
		"END:VCARD",
	} {
		if !strings.Contains(card, want) {
			t.Errorf("vcard missing %q in:\n%s", want, card)
		}
	}
}
