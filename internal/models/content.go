package models

// SiteContent is the static copy of the research project site.
type SiteContent struct {
	Navigation []NavItem      `yaml:"navigation" json:"navigation"`
	Hero       Hero           `yaml:"hero" json:"hero"`
	Technology []Feature      `yaml:"technology" json:"technology"`
	Pipeline   []Feature      `yaml:"pipeline" json:"pipeline"`
	Results    ResultsContent `yaml:"results" json:"results"`
	Demo       DemoContent    `yaml:"demo" json:"demo"`
	Team       TeamContent    `yaml:"team" json:"team"`
	Docs       DocsContent    `yaml:"docs" json:"docs"`
	Footer     []FooterColumn `yaml:"footer" json:"footer"`
}

// NavItem links to a section anchor on the page.
type NavItem struct {
	Name   string `yaml:"name" json:"name"`
	Anchor string `yaml:"anchor" json:"anchor"`
}

// Hero is the landing banner.
type Hero struct {
	Badge      string   `yaml:"badge" json:"badge"`
	Title      string   `yaml:"title" json:"title"`
	Subtitle   string   `yaml:"subtitle" json:"subtitle"`
	Stats      []Metric `yaml:"stats" json:"stats"`
	Highlights []string `yaml:"highlights" json:"highlights"`
}

// Feature is a titled card with a description.
type Feature struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Metric is a headline figure.
type Metric struct {
	Label       string `yaml:"label" json:"label"`
	Value       string `yaml:"value" json:"value"`
	Improvement string `yaml:"improvement,omitempty" json:"improvement,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ResultsContent is the evaluation section.
type ResultsContent struct {
	Metrics    []Metric    `yaml:"metrics" json:"metrics"`
	Benchmarks []Benchmark `yaml:"benchmarks" json:"benchmarks"`
	Specs      []SpecGroup `yaml:"specs" json:"specs"`
}

// Benchmark is one dataset evaluation row.
type Benchmark struct {
	Dataset   string `yaml:"dataset" json:"dataset"`
	Samples   string `yaml:"samples" json:"samples"`
	Accuracy  string `yaml:"accuracy" json:"accuracy"`
	Precision string `yaml:"precision" json:"precision"`
	Recall    string `yaml:"recall" json:"recall"`
}

// SpecGroup is a titled list of specification bullets.
type SpecGroup struct {
	Title string   `yaml:"title" json:"title"`
	Specs []string `yaml:"specs" json:"specs"`
}

// SampleResult is a canned detection shown beside the live demo.
type SampleResult struct {
	Type        string  `yaml:"type" json:"type"`
	Confidence  float64 `yaml:"confidence" json:"confidence"`
	Status      string  `yaml:"status" json:"status"`
	Description string  `yaml:"description" json:"description"`
}

// DemoContent is the copy around the interactive demo.
type DemoContent struct {
	SampleResults  []SampleResult `yaml:"sampleResults" json:"sampleResults"`
	Specifications []Metric       `yaml:"specifications" json:"specifications"`
	SupportedHint  string         `yaml:"supportedHint" json:"supportedHint"`
}

// TeamMember is one researcher.
type TeamMember struct {
	Name       string            `yaml:"name" json:"name"`
	Role       string            `yaml:"role" json:"role"`
	Department string            `yaml:"department,omitempty" json:"department,omitempty"`
	Expertise  string            `yaml:"expertise,omitempty" json:"expertise,omitempty"`
	Links      map[string]string `yaml:"links,omitempty" json:"links,omitempty"`
	Initials   string            `yaml:"-" json:"initials"`
}

// TeamContent is the team section.
type TeamContent struct {
	Members      []TeamMember `yaml:"members" json:"members"`
	Achievements []Feature    `yaml:"achievements" json:"achievements"`
}

// Document is a downloadable artefact.
type Document struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Type        string `yaml:"type" json:"type"`
	Size        string `yaml:"size,omitempty" json:"size,omitempty"`
	Slug        string `yaml:"-" json:"slug"`
	DownloadURL string `yaml:"-" json:"downloadUrl"`
}

// Publication is a paper citation.
type Publication struct {
	Title   string `yaml:"title" json:"title"`
	Authors string `yaml:"authors" json:"authors"`
	Venue   string `yaml:"venue" json:"venue"`
	Year    string `yaml:"year,omitempty" json:"year,omitempty"`
}

// DocsContent is the documentation section.
type DocsContent struct {
	Documents    []Document    `yaml:"documents" json:"documents"`
	Instructions []Feature     `yaml:"instructions" json:"instructions"`
	Publications []Publication `yaml:"publications" json:"publications"`
}

// FooterColumn groups footer links.
type FooterColumn struct {
	Heading string     `yaml:"heading" json:"heading"`
	Links   []LinkItem `yaml:"links" json:"links"`
}

// LinkItem is either an in-page anchor or an external href.
type LinkItem struct {
	Name     string `yaml:"name" json:"name"`
	Href     string `yaml:"href" json:"href"`
	External bool   `yaml:"external,omitempty" json:"external,omitempty"`
}
