// Package domain models backward drift runs for tagged organisms.
//
// # Input Records
//
// Each row of the input table describes one tagged organism at the moment it
// was recovered: an identifier (the tag ID), the date and time to start
// backtracking from, and the recovery latitude/longitude.
//
// Time format:
//
//	"YYYY-MM-DD HH:MM:SS", e.g. "2019-07-14 08:30:00" (Go layout
//	"2006-01-02 15:04:05"), interpreted as UTC.
//	Spreadsheets frequently store these as date serials instead of text.
//	A purely numeric value is treated as an Excel 1900-system serial and
//	converted to a time before giving up with a [ParseError].
//
// # Output Files
//
// One netCDF file per record, named by [OutputFileName]:
//
//	tracking_output_tag_ID_<identifier>.nc
//
// The file holds "lon" and "lat" arrays of equal length, typically shaped
// (trajectory, time). Only the last element of each flattened array is used:
// it is the final position of the last particle, which for a backward run is
// the estimated origin of the organism.
//
// # Run Policy
//
// Durations are declared by a [DurationPolicy] rather than by table order
// alone. The default policy gives every record 21 days except the final row,
// which gets 300. Per-identifier overrides take precedence over both.
//
// Timesteps are configured in minutes. The calculation step is negated for
// backward runs, so a 60 minute step becomes -3600 seconds. The output step is
// always positive.
//
// # Joining Results
//
// The merger pairs table rows with output files according to a [JoinMode].
// Positional modes depend on the lexicographic file order lining up with the
// table order; [JoinByIdentifier] matches on the identifier embedded in each
// file name and is the only mode that cannot silently misalign rows.
package domain
