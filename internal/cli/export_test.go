package cli

// Export internal functions for testing.

// RunRecord exports runRecord for testing.
var RunRecord = runRecord

// RunStatus exports runStatus for testing.
var RunStatus = runStatus

// RunWatch exports runWatch for testing.
var RunWatch = runWatch

// RunListDevices exports runListDevices for testing.
var RunListDevices = runListDevices

// RunConfigSet exports runConfigSet for testing.
var RunConfigSet = runConfigSet

// RunConfigGet exports runConfigGet for testing.
var RunConfigGet = runConfigGet

// RunConfigList exports runConfigList for testing.
var RunConfigList = runConfigList

// IsValidConfigKey exports isValidConfigKey for testing.
var IsValidConfigKey = isValidConfigKey

// NewDeliveryLog exports newDeliveryLog for testing.
var NewDeliveryLog = newDeliveryLog

// RecordOptions exports recordOptions for testing.
type RecordOptions = recordOptions
