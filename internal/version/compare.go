package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// CheckReportCompatibility checks whether a report written by reportVersion can be
// read by an engine at engineVersion. Returns nil if compatible.
//
// Compatibility Rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - The report's minor version must not be newer than the engine's
//   - Patch versions can differ
//
// Examples:
//   - Engine 1.2.0, Report 1.2.0 -> OK (exact match)
//   - Engine 1.3.0, Report 1.2.5 -> OK (older report)
//   - Engine 1.2.0, Report 1.3.0 -> ERROR (report newer than engine)
//   - Engine 2.0.0, Report 1.2.0 -> ERROR (major differs)
func CheckReportCompatibility(engineVersion, reportVersion string) error {
	engineVersion = strings.TrimPrefix(engineVersion, "v")
	reportVersion = strings.TrimPrefix(reportVersion, "v")

	if engineVersion == "main" || reportVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid engine version '%s'", engineVersion)
	}

	reportSemver, err := semver.NewVersion(reportVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid report version '%s'", reportVersion)
	}

	if engineSemver.Major() != reportSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: engine is %d.x.x but report was written by %d.x.x",
			engineSemver.Major(), reportSemver.Major())
	}

	if reportSemver.Minor() > engineSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "report was written by %d.%d.x, newer than engine %d.%d.x",
			reportSemver.Major(), reportSemver.Minor(),
			engineSemver.Major(), engineSemver.Minor())
	}

	return nil
}
