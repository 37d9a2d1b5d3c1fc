package messenger

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-vcard"
)

// ExportVCard renders a contact as a vCard 4.0 document, the format
// the UI offers for "share contact" and address-book export.
func ExportVCard(c Contact) (string, error) {
	card := make(vcard.Card)

	fullName := strings.TrimSpace(c.FirstName + " " + c.LastName)
	card.SetValue(vcard.FieldFormattedName, fullName)
	card.SetValue(vcard.FieldName, fmt.Sprintf("%s;%s;;;", c.LastName, c.FirstName))

	if c.Phone != "" {
		card.SetValue(vcard.FieldTelephone, c.Phone)
	}
	if c.Username != "" {
		card.SetValue(vcard.FieldNickname, c.Username)
	}

	vcard.ToV4(card)

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return "", fmt.Errorf("encode vcard: %w", err)
	}
	return buf.String(), nil
}
