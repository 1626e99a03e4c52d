package telemetry

// Metric names from §6, passed verbatim to collab.MetricsSink.IncCounter
// / SetGauge by every component that reports them.
const (
	MetricFAMEnabled             = "/santa/fam_enabled"
	MetricFileAccessEvent        = "/santa/file_access_event"
	MetricStartupDiskOperation   = "/santa/device_manager/startup_disk_operation"
	MetricStartupPreference      = "/santa/device_manager/startup_preference"
	MetricRateLimitedEvents      = "/santa/rate_limited_events"
	MetricARCRootOwnedEntries    = "/santa/arc/root_owned_entries"
	MetricARCNonRootOwnedEntries = "/santa/arc/non_root_owned_entries"
)
