package opendap

import (
	"fmt"
	"time"
)

// SelectRun computes the GFS cycle (date + "00"/"06"/"12"/"18") that is
// runAge hours behind now, and the run_name ("YYYYMMDD_HHZ") derived from
// it. Walking back by runAge hours and flooring to the enclosing 6-hour
// cycle boundary is algebraically the same as
// floor((utc_hour_now-run_age+24) mod 24 / 6)*6 for the cycle hour, but
// deriving the date from the walked-back time.Time avoids re-deriving a
// day rollback by hand.
func SelectRun(now time.Time, runAge int) (date, cycle, runName string) {
	target := now.UTC().Add(-time.Duration(runAge) * time.Hour)
	cycleHour := (target.Hour() / 6) * 6
	boundary := time.Date(target.Year(), target.Month(), target.Day(), cycleHour, 0, 0, 0, time.UTC)

	date = boundary.Format("20060102")
	cycle = fmt.Sprintf("%02d", cycleHour)
	runName = fmt.Sprintf("%s_%02dZ", date, cycleHour)
	return date, cycle, runName
}

// DatasetURL builds the OpenDAP dataset identifier URL for a given date
// ("YYYYMMDD") and cycle ("00"/"06"/"12"/"18"), rooted at baseURL
// (e.g. "https://nomads.ncep.noaa.gov/dods/gfs_0p50").
func DatasetURL(baseURL, date, cycle string) string {
	return fmt.Sprintf("%s/gfs%s/gfs_0p50_%sz", baseURL, date, cycle)
}
