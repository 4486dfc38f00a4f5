package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// writeServiceTable prints one line per service. UNALLOCATED is the cost no
// line item accounts for.
func writeServiceTable(w io.Writer, ds *domain.Dataset) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tACCOUNT\tCOST\tSHARE\tROWS\tUNALLOCATED\tCHARGE TYPES")
	for _, s := range ds.Services {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f%%\t%d\t%.2f\t%s\n",
			s.Name, s.Account, s.Cost, s.Share, s.RowCount,
			s.Cost-s.DetailCost(), strings.Join(s.TopChargeTypes(), ","))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%.2f\t\t%d\t\t\n", ds.TotalCost, ds.RowCount)
	tw.Flush()
}

// missingTagTarget describes why a tag target is not in ds, or returns "".
// Tagging ahead of an import is allowed, so callers only warn.
func missingTagTarget(ds *domain.Dataset, service, detail string) string {
	svc, ok := ds.ServiceByName(service)
	if !ok {
		return "Service not found in imported data"
	}
	if detail == "" {
		return ""
	}
	for _, d := range svc.Details {
		if d.Name == detail {
			return ""
		}
	}
	return "Line item not found under service"
}
