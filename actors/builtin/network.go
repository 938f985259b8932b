package builtin

// Schedule boundaries are unix timestamps in seconds, as reported by the host clock.
// These durations help express schedules in calendar terms.
const SecondsInHour = 3600
const SecondsInDay = 86400
const SecondsInYear = 31556925

// Parameter: Longest schedule a client tool will build without an explicit override.
// Usage: Guards against timestamps typed in milliseconds.
const MaxScheduleDuration = 100 * SecondsInYear
