package kevent

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/shirou/gopsutil/v3/host"
	log "github.com/sirupsen/logrus"
)

// MinUeventKernel is the oldest kernel release that multicasts uevents over
// NETLINK_KOBJECT_UEVENT.
const MinUeventKernel = "2.6.10"

// KernelRelease returns the running kernel's release string.
func KernelRelease() (string, error) {
	return host.KernelVersion()
}

// KernelAtLeast reports whether release is not older than min. Distribution
// suffixes ("-generic", "+") are ignored.
func KernelAtLeast(release, min string) (bool, error) {
	v, err := semver.NewVersion(trimRelease(release))
	if err != nil {
		return false, fmt.Errorf("parsing kernel release %q: %w", release, err)
	}
	return !v.LessThan(semver.MustParse(min)), nil
}

func trimRelease(release string) string {
	if i := strings.IndexAny(release, "-+_ "); i >= 0 {
		return release[:i]
	}
	return release
}

// CheckKernel logs a warning when uevents are requested on a kernel too old
// to deliver them. It never fails.
func CheckKernel(protocols ProtocolSet) string {
	release, err := KernelRelease()
	if err != nil {
		log.WithError(err).Debug("Could not read kernel release")
		return ""
	}
	if !protocols.Has(KernelObjectEvent) {
		return release
	}

	ok, err := KernelAtLeast(release, MinUeventKernel)
	if err != nil {
		log.WithError(err).WithField("release", release).Debug("Could not compare kernel release")
		return release
	}
	if !ok {
		log.WithFields(log.Fields{
			"release": release,
			"minimum": MinUeventKernel,
		}).Warn("Kernel is older than the first release with netlink uevents")
	}
	return release
}
