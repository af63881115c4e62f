package capture

// Test-only exports for white-box access from capture_test.

var (
	BuildSegmentArgs         = buildSegmentArgs
	EncodingArgs             = encodingArgs
	FormatInputArg           = formatInputArg
	ListDevicesArgs          = listDevicesArgs
	ParseAVFoundationDevices = parseAVFoundationDevices
	ParseDShowDevices        = parseDShowDevices
	ParseALSADevices         = parseALSADevices
	ParsePulseDevices        = parsePulseDevices
	RankDevices              = rankDevices
	IsVirtualAudioDevice     = isVirtualAudioDevice
	IsMicrophoneDevice       = isMicrophoneDevice
)
