package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks a content type based on the Accept
// header of a request and the available types, in order of
// preference. Of the acceptable types on offer, the one with the
// highest quality (`q`) wins; ties go to the earlier preference. No
// Accept header means the first preference; nothing acceptable on
// offer means "".
func negotiateContentType(r *http.Request, orderedPref []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return orderedPref[0]
	}

	var offered []header.AcceptSpec
	for _, spec := range specs {
		if indexOf(orderedPref, spec.Value) < len(orderedPref) {
			offered = append(offered, spec)
		}
	}
	if len(offered) == 0 {
		return ""
	}
	sort.SliceStable(offered, func(i, j int) bool {
		if offered[i].Q == offered[j].Q {
			return indexOf(orderedPref, offered[i].Value) < indexOf(orderedPref, offered[j].Value)
		}
		return offered[i].Q > offered[j].Q
	})
	return offered[0].Value
}

// indexOf returns len(ss) when search is not found, so that it sorts
// after everything that is.
func indexOf(ss []string, search string) int {
	for i, s := range ss {
		if s == search {
			return i
		}
	}
	return len(ss)
}
