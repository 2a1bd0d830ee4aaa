package didl

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decoded mirrors an item as a renderer reads it, by namespace rather than
// prefix.
type decoded struct {
	Items []struct {
		ID        string     `xml:"id,attr"`
		Title     string     `xml:"http://purl.org/dc/elements/1.1/ title"`
		Class     string     `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ class"`
		Resources []Resource `xml:"res"`
	} `xml:"item"`
}

func TestMarshalText(t *testing.T) {
	doc := NewDocument(Item{
		ID:         "0",
		ParentID:   "-1",
		Restricted: "1",
		Title:      "Tom & Jerry",
		Class:      ClassVideo,
		Resources: []Resource{{
			ProtocolInfo: "http-get:*:video/mp4:DLNA.ORG_OP=01",
			Size:         10,
			Duration:     "0:07:12",
			URL:          "http://10.0.0.2:8080/media/tom.mp4",
		}},
	})

	b, err := doc.MarshalText()
	require.NoError(t, err)
	assert.Contains(t, string(b), `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"`)
	assert.Contains(t, string(b), `<dc:title>Tom &amp; Jerry</dc:title>`)
	assert.Contains(t, string(b), `duration="0:07:12"`)

	var got decoded
	require.NoError(t, xml.Unmarshal(b, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "0", got.Items[0].ID)
	assert.Equal(t, "Tom & Jerry", got.Items[0].Title)
	assert.Equal(t, ClassVideo, got.Items[0].Class)
	require.Len(t, got.Items[0].Resources, 1)
	assert.Equal(t, uint64(10), got.Items[0].Resources[0].Size)
	assert.Equal(t, "http://10.0.0.2:8080/media/tom.mp4", got.Items[0].Resources[0].URL)
}

func TestMarshalTextOmitsEmptyAttributes(t *testing.T) {
	b, err := NewDocument(Item{Title: "a", Class: ClassAudio, Resources: []Resource{{ProtocolInfo: "http-get:*:audio/mpeg:*"}}}).MarshalText()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "duration=")
	assert.NotContains(t, string(b), "size=")
}
