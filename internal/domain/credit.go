package domain

import "strings"

// Standard is the verification standard a project was certified under.
type Standard string

const (
	StandardVCS          Standard = "VCS"
	StandardGoldStandard Standard = "Gold Standard"
	StandardCDM          Standard = "CDM"
	StandardCAR          Standard = "CAR"
	StandardCCP          Standard = "CCP"
	StandardVerra        Standard = "Verra"
	StandardOther        Standard = "Other"
)

// NormalizeStandard maps free-form input onto a known standard.
// Acronyms are matched case-insensitively; anything unknown is Other.
func NormalizeStandard(s string) Standard {
	trimmed := strings.TrimSpace(s)
	switch upper := strings.ToUpper(trimmed); upper {
	case "VCS", "CDM", "CAR", "CCP":
		return Standard(upper)
	}
	switch strings.ToLower(trimmed) {
	case "gold standard":
		return StandardGoldStandard
	case "verra":
		return StandardVerra
	}
	return StandardOther
}

// ProjectType is the project category.
type ProjectType string

const (
	ProjectRenewableEnergy ProjectType = "Renewable Energy"
	ProjectForestry        ProjectType = "Forestry"
	ProjectAgriculture     ProjectType = "Agriculture"
	ProjectWasteManagement ProjectType = "Waste Management"
	ProjectIndustrial      ProjectType = "Industrial"
	ProjectAfforestation   ProjectType = "Afforestation"
	ProjectReforestation   ProjectType = "Reforestation"
	ProjectOther           ProjectType = "Other"
)

var projectTypes = []ProjectType{
	ProjectRenewableEnergy,
	ProjectForestry,
	ProjectAgriculture,
	ProjectWasteManagement,
	ProjectIndustrial,
	ProjectAfforestation,
	ProjectReforestation,
}

// NormalizeProjectType matches input case-insensitively against the known
// types. Empty or unknown input is Other.
func NormalizeProjectType(s string) ProjectType {
	trimmed := strings.TrimSpace(s)
	for _, pt := range projectTypes {
		if strings.EqualFold(trimmed, string(pt)) {
			return pt
		}
	}
	return ProjectOther
}

// Location of a project.
type Location struct {
	Country     string `json:"country"`
	Region      string `json:"region,omitempty"`
	Coordinates string `json:"coordinates,omitempty"`
}

// String renders "Region, Country", or just the country.
func (l Location) String() string {
	if l.Region == "" {
		return l.Country
	}
	if l.Country == "" {
		return l.Region
	}
	return l.Region + ", " + l.Country
}

// Verification describes who certified the project and when.
type Verification struct {
	Verifier          string `json:"verifier,omitempty"`
	CertificationBody string `json:"certificationBody,omitempty"`
	VerificationDate  string `json:"verificationDate,omitempty"` // YYYY-MM-DD
	CertificateNumber string `json:"certificateNumber,omitempty"`
	Status            string `json:"status,omitempty"` // Pending | Verified | Expired | Rejected
}

// ProjectAttributes are the descriptive fields supplied when tokenizing a project.
type ProjectAttributes struct {
	ProjectName  string       `json:"projectName"`
	ProjectID    string       `json:"projectId,omitempty"`
	Description  string       `json:"description,omitempty"`
	Location     Location     `json:"location"`
	VintageYear  int          `json:"vintageYear"`
	CarbonAmount float64      `json:"carbonAmount"` // tonnes CO2e
	Standard     Standard     `json:"verificationStandard"`
	ProjectType  ProjectType  `json:"projectType"`
	Verification Verification `json:"verification"`
	ExternalURL  string       `json:"externalUrl,omitempty"`
}
