// SPDX-License-Identifier: MPL-2.0

package jarscan

// Chain runs scanners in order with the same loader, callback and skip set.
type Chain []Scanner

// Scan implements Scanner.
func (c Chain) Scan(loader ClassLoader, cb Callback, skip SkipSet) Report {
	var report Report
	for _, s := range c {
		if s == nil {
			continue
		}
		report = report.Add(s.Scan(loader, cb, skip))
	}
	return report
}
