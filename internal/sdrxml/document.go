// Package sdrxml parses the IIOD context XML document -- the
// create_context_from_xml collaborator of spec §6 -- into a typed tree the
// iio package turns into Context/Device/Channel objects. The struct tags
// and scan-format grammar are carried over from the teacher's hand-rolled
// IIOD XML schema, derived from observed PlutoSDR firmware output and
// compatible with both older and newer IIOD releases.
package sdrxml

import "encoding/xml"

// Document is the root of the parsed context XML.
type Document struct {
	XMLName          xml.Name           `xml:"context"`
	Name             string             `xml:"name,attr"`
	VersionMajor     string             `xml:"version-major,attr"`
	VersionMinor     string             `xml:"version-minor,attr"`
	VersionGit       string             `xml:"version-git,attr"`
	Description      string             `xml:"description,attr"`
	ContextAttribute []ContextAttribute `xml:"context-attribute"`
	Device           []DeviceEntry      `xml:"device"`

	Index *Index `xml:"-"`
}

// Index provides O(1) lookup structures built after unmarshalling.
type Index struct {
	DevicesByID   map[string]*DeviceEntry
	DevicesByName map[string]*DeviceEntry
	Channels      map[string]map[string]*ChannelEntry // devName -> chName -> entry
	AttrFiles     map[string]map[string]map[string]string
	NoDevices     int
	NoChannels    int
}

type ContextAttribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type DeviceEntry struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Label string `xml:"label,attr"`

	Channel         []ChannelEntry    `xml:"channel"`
	Attribute       []NamedAttribute  `xml:"attribute"`
	DebugAttribute  []NamedAttribute  `xml:"debug-attribute"`
	BufferAttribute []NamedAttribute  `xml:"buffer-attribute"`
}

type ChannelEntry struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"` // "input" | "output"

	Attribute      []ChannelAttribute `xml:"attribute"`
	ScanElementRaw *ScanElementXML    `xml:"scan-element"`
	ParsedFormat   *ScanFormat        `xml:"-"`
}

// NamedAttribute covers device/debug/buffer-scoped attribute declarations,
// which carry only a name in the XML (the value is read from the device
// over the wire, not embedded in the context document).
type NamedAttribute struct {
	Name string `xml:"name,attr"`
}

// ChannelAttribute additionally carries the sysfs filename backing it,
// which may differ from the canonical attribute name (e.g. shared
// in/out_altvoltageN_* files for paired TX/RX channels).
type ChannelAttribute struct {
	Name     string `xml:"name,attr"`
	Filename string `xml:"filename,attr"`
}

// ScanElementXML is the raw <scan-element> tag before ParseScanFormat
// turns its format string into a ScanFormat.
type ScanElementXML struct {
	Index  string `xml:"index,attr"`
	Format string `xml:"format,attr"`
}

// ScanFormat mirrors internal/codec.Format but is the XML-derived
// intermediate: it additionally carries the signed scan index (-1 is not
// representable in codec.Format, which is purely about wire layout).
type ScanFormat struct {
	Index        int64
	IsBigEndian  bool
	IsSigned     bool
	Bits         uint
	Length       uint
	Repeat       uint
	Shift        uint
	FullyDefined bool
}
