package searchservicedocuments

import "gcloud-docgen/internal/search"

type Input struct {
	ServiceName       string
	DocTypes          []string
	FrameworkVersions []string
	Lots              []string
	Limit             int
}

type Output struct {
	Results []search.Result
	Total   int
}
