package config

import (
	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/validation"
)

// Validate is the Init-phase gate for a site build. Any failure here is
// fatal for this site only; a multi-site run continues with the rest.
func (s *SiteConfig) Validate(outputRoot string) error {
	name, err := validation.ValidateSiteName(s.Name)
	if err != nil {
		return errors.ErrSiteInit(s.Name, "invalid site name")
	}
	s.Name = name

	if s.BaseURL != "" {
		if _, err := validation.ValidateURLStrict(s.BaseURL); err != nil {
			return errors.ErrSiteInit(s.Name, "invalid base URL: "+s.BaseURL)
		}
	}

	// The output directory must resolve inside the allowed output root so
	// a mistyped site.yaml can never write outside the deploy tree.
	resolved, err := validation.ValidateSafePath(outputRoot, s.OutputDir)
	if err != nil {
		return errors.ErrSiteInit(s.Name, "output directory escapes output root: "+s.OutputDir)
	}
	s.OutputDir = resolved

	if err := validation.ValidateDirExists(s.ContentDir); err != nil {
		return errors.ErrSiteInit(s.Name, "content directory missing: "+s.ContentDir)
	}
	// An empty TemplateDir means the built-in templates.
	if s.TemplateDir != "" {
		if err := validation.ValidateDirExists(s.TemplateDir); err != nil {
			return errors.ErrSiteInit(s.Name, "template directory missing: "+s.TemplateDir)
		}
	}

	return nil
}
