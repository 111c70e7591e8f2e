package sdrxml

import "testing"

const sampleContextXML = `<?xml version="1.0" encoding="utf-8"?>
<context name="local" version-major="0" version-minor="25" version-git="abcdef0" description="test">
  <context-attribute name="uri" value="ip:192.0.2.1"/>
  <device id="iio:device0" name="ad9361-phy">
    <channel id="voltage0" name="TX_LO" type="output">
      <attribute name="external" filename="out_altvoltage1_TX_LO_external"/>
      <scan-element index="0" format="le:s12/16>>0"/>
    </channel>
    <channel id="voltage1" type="input">
      <scan-element index="1" format="be:U32/32X2>>4"/>
    </channel>
    <attribute name="in_voltage0_hardwaregain"/>
    <debug-attribute name="loopback"/>
    <buffer-attribute name="watermark"/>
  </device>
</context>`

func TestParseContextBuildsIndex(t *testing.T) {
	doc, err := ParseContext([]byte(sampleContextXML))
	if err != nil {
		t.Fatalf("ParseContext: %v", err)
	}
	if doc.Name != "local" || doc.VersionMajor != "0" || doc.VersionMinor != "25" {
		t.Fatalf("unexpected metadata: %+v", doc)
	}
	if len(doc.Device) != 1 {
		t.Fatalf("expected 1 device, got %d", len(doc.Device))
	}

	idx := doc.Index
	if idx.NoDevices != 1 || idx.NoChannels != 2 {
		t.Fatalf("unexpected index counts: devices=%d channels=%d", idx.NoDevices, idx.NoChannels)
	}

	byName, err := idx.LookupDevice("ad9361-phy")
	if err != nil {
		t.Fatalf("LookupDevice by name: %v", err)
	}
	byID, err := idx.LookupDevice("iio:device0")
	if err != nil {
		t.Fatalf("LookupDevice by id: %v", err)
	}
	if byName != byID {
		t.Fatal("expected name and id lookup to return the same device")
	}

	ch, err := idx.LookupChannel("ad9361-phy", "TX_LO")
	if err != nil {
		t.Fatalf("LookupChannel: %v", err)
	}
	if ch.ParsedFormat == nil || ch.ParsedFormat.Bits != 12 || ch.ParsedFormat.Length != 16 {
		t.Fatalf("unexpected parsed format: %+v", ch.ParsedFormat)
	}
	if ch.ParsedFormat.IsBigEndian || !ch.ParsedFormat.IsSigned || ch.ParsedFormat.FullyDefined {
		t.Fatalf("unexpected flags: %+v", ch.ParsedFormat)
	}

	filename, err := idx.LookupAttributeFile("ad9361-phy", "TX_LO", "external")
	if err != nil {
		t.Fatalf("LookupAttributeFile: %v", err)
	}
	if filename != "out_altvoltage1_TX_LO_external" {
		t.Fatalf("got %q", filename)
	}
}

func TestParseScanFormatRepeatAndFullyDefined(t *testing.T) {
	ch, err := idxChannel(t, "iio:device0", "voltage1")
	_ = err
	sf := ch.ParsedFormat
	if sf.Repeat != 2 {
		t.Fatalf("expected repeat 2, got %d", sf.Repeat)
	}
	if !sf.FullyDefined || sf.IsSigned {
		t.Fatalf("expected fully-defined unsigned, got %+v", sf)
	}
	if !sf.IsBigEndian {
		t.Fatal("expected big-endian")
	}
	if sf.Shift != 4 {
		t.Fatalf("expected shift 4, got %d", sf.Shift)
	}
}

func idxChannel(t *testing.T, devID, chID string) (*ChannelEntry, error) {
	t.Helper()
	doc, err := ParseContext([]byte(sampleContextXML))
	if err != nil {
		t.Fatalf("ParseContext: %v", err)
	}
	dev, err := doc.Index.LookupDevice(devID)
	if err != nil {
		t.Fatalf("LookupDevice: %v", err)
	}
	for i := range dev.Channel {
		if dev.Channel[i].ID == chID {
			return &dev.Channel[i], nil
		}
	}
	t.Fatalf("channel %q not found", chID)
	return nil, nil
}

func TestParseContextRejectsEmpty(t *testing.T) {
	if _, err := ParseContext(nil); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestParseContextRejectsBadScanFormat(t *testing.T) {
	const bad = `<context name="x" version-major="0" version-minor="1" version-git="g" description="d">
  <device id="iio:device0" name="dev">
    <channel id="voltage0" type="input">
      <scan-element index="0" format="garbage"/>
    </channel>
  </device>
</context>`
	if _, err := ParseContext([]byte(bad)); err == nil {
		t.Fatal("expected error for malformed scan format")
	}
}
