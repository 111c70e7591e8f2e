package sdrxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// scanFmtRe matches the IIOD scan-element format grammar:
// "le:s12/16>>0", "be:U32/32X2>>0", etc.
var scanFmtRe = regexp.MustCompile(`^(le|be):([sSuU])(\d+)/(\d+)(?:X(\d+))?>>(\d+)$`)

// ParseContext decodes a raw IIOD context XML document and builds its
// lookup index (spec §6, create_context_from_xml).
func ParseContext(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("sdrxml: empty document")
	}
	var doc Document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("sdrxml: parse: %w", err)
	}
	for i := range doc.Device {
		dev := &doc.Device[i]
		for c := range dev.Channel {
			ch := &dev.Channel[c]
			if ch.ScanElementRaw == nil {
				continue
			}
			sf, err := parseScanFormat(ch.ScanElementRaw)
			if err != nil {
				return nil, fmt.Errorf("sdrxml: device %q channel %q: %w", dev.ID, ch.ID, err)
			}
			ch.ParsedFormat = sf
		}
	}
	doc.Index = buildIndex(&doc)
	return &doc, nil
}

func buildIndex(doc *Document) *Index {
	idx := &Index{
		DevicesByID:   make(map[string]*DeviceEntry),
		DevicesByName: make(map[string]*DeviceEntry),
		Channels:      make(map[string]map[string]*ChannelEntry),
		AttrFiles:     make(map[string]map[string]map[string]string),
	}
	for i := range doc.Device {
		dev := &doc.Device[i]
		if dev.ID != "" {
			idx.DevicesByID[dev.ID] = dev
		}
		if dev.Name != "" {
			idx.DevicesByName[dev.Name] = dev
		}
		idx.Channels[dev.Name] = make(map[string]*ChannelEntry)
		idx.AttrFiles[dev.Name] = make(map[string]map[string]string)

		for c := range dev.Channel {
			ch := &dev.Channel[c]
			key := ch.ID
			if ch.Name != "" {
				key = ch.Name
			}
			idx.Channels[dev.Name][key] = ch
			idx.AttrFiles[dev.Name][key] = make(map[string]string)
			for _, attr := range ch.Attribute {
				if attr.Name != "" && attr.Filename != "" {
					idx.AttrFiles[dev.Name][key][attr.Name] = attr.Filename
				}
			}
		}
	}
	idx.NoDevices = len(idx.DevicesByID)
	for _, chans := range idx.Channels {
		idx.NoChannels += len(chans)
	}
	return idx
}

// LookupDevice resolves a device by name, falling back to its id.
func (idx *Index) LookupDevice(identifier string) (*DeviceEntry, error) {
	if d, ok := idx.DevicesByName[identifier]; ok {
		return d, nil
	}
	if d, ok := idx.DevicesByID[identifier]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("sdrxml: device %q not found", identifier)
}

// LookupChannel resolves a channel by name or id within a device, keyed by
// device name.
func (idx *Index) LookupChannel(devName, chName string) (*ChannelEntry, error) {
	devMap, ok := idx.Channels[devName]
	if !ok {
		return nil, fmt.Errorf("sdrxml: device %q not found", devName)
	}
	if ch, ok := devMap[chName]; ok {
		return ch, nil
	}
	for _, ch := range devMap {
		if ch.ID == chName {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("sdrxml: channel %q not found in device %q", chName, devName)
}

// LookupAttributeFile resolves the sysfs filename backing a channel
// attribute, which is not always the same as the attribute's logical name.
func (idx *Index) LookupAttributeFile(dev, ch, attr string) (string, error) {
	chMap, ok := idx.AttrFiles[dev]
	if !ok {
		return "", fmt.Errorf("sdrxml: device %q not found", dev)
	}
	files, ok := chMap[ch]
	if !ok {
		return "", fmt.Errorf("sdrxml: channel %q not found in device %q", ch, dev)
	}
	f, ok := files[attr]
	if !ok {
		return "", fmt.Errorf("sdrxml: attribute %q not found on %s/%s", attr, dev, ch)
	}
	return f, nil
}

func parseScanFormat(raw *ScanElementXML) (*ScanFormat, error) {
	format := strings.TrimSpace(raw.Format)
	m := scanFmtRe.FindStringSubmatch(format)
	if m == nil {
		return nil, fmt.Errorf("invalid scan format %q", format)
	}

	index, err := strconv.ParseInt(raw.Index, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid scan index %q: %w", raw.Index, err)
	}

	isBE := m[1] == "be"
	isSigned := false
	fullyDefined := false
	switch m[2] {
	case "s":
		isSigned = true
	case "u":
	case "S":
		isSigned = true
		fullyDefined = true
	case "U":
		fullyDefined = true
	default:
		return nil, fmt.Errorf("invalid sign specifier %q", m[2])
	}

	bits, err := strconv.ParseUint(m[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid bits %q: %w", m[3], err)
	}
	length, err := strconv.ParseUint(m[4], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid length %q: %w", m[4], err)
	}
	if bits == 0 || length == 0 || bits > length {
		return nil, fmt.Errorf("invalid bits/length %d/%d", bits, length)
	}

	repeat := uint64(1)
	if m[5] != "" {
		repeat, err = strconv.ParseUint(m[5], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid repeat %q: %w", m[5], err)
		}
		if repeat == 0 {
			return nil, fmt.Errorf("repeat must be >= 1")
		}
	}

	shift, err := strconv.ParseUint(m[6], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid shift %q: %w", m[6], err)
	}

	return &ScanFormat{
		Index:        index,
		IsBigEndian:  isBE,
		IsSigned:     isSigned,
		Bits:         uint(bits),
		Length:       uint(length),
		Repeat:       uint(repeat),
		Shift:        uint(shift),
		FullyDefined: fullyDefined,
	}, nil
}
