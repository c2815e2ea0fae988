package projection

import (
	"github.com/smallbiznis/packflow/internal/submission/domain"
)

// ValidateRegistrationBundle combines the company details, brands and
// partnerships chains into one verdict. The bundle is anchored on the newest
// company details upload; whether the brands and partnerships files are
// required at all is read off the company details row-validation outcome.
func ValidateRegistrationBundle(events []domain.Event) domain.RegistrationVerdict {
	sorted := sortedCopy(events)

	verdict := domain.RegistrationVerdict{
		CompanyDetails: domain.FileValidity{FileType: domain.FileTypeCompanyDetails},
		Brands:         domain.FileValidity{FileType: domain.FileTypeBrands},
		Partnerships:   domain.FileValidity{FileType: domain.FileTypePartnerships},
	}
	if check, ok := latestCheck(sorted, domain.FileTypeCompanyDetails, nil); ok {
		verdict = validateBundleFromCheck(sorted, check)
	}
	verdict.LastValidFiles = lastValidFiles(sorted)
	return verdict
}

// validateBundleFromCheck evaluates the bundle anchored at a specific company
// details upload.
func validateBundleFromCheck(sorted []domain.Event, check domain.AntivirusCheckEvent) domain.RegistrationVerdict {
	verdict := domain.RegistrationVerdict{
		RegistrationSetID: check.RegistrationSetID,
		CompanyDetails:    reduceFromCheck(sorted, check),
		Brands:            domain.FileValidity{FileType: domain.FileTypeBrands},
		Partnerships:      domain.FileValidity{FileType: domain.FileTypePartnerships},
	}

	if result, ok := latestResultForFile(sorted, check.FileID); ok {
		if rowEvent, ok := latestRowValidation(sorted, domain.EventTypeRegistrationValidation, result.BlobName); ok {
			reg := rowEvent.(domain.RegistrationValidationEvent)
			verdict.RequiresBrandsFile = reg.RequiresBrandsFile
			verdict.RequiresPartnershipsFile = reg.RequiresPartnershipsFile
		}
	}

	if verdict.RequiresBrandsFile {
		verdict.Brands = reduceScoped(sorted, domain.FileTypeBrands, verdict)
	}
	if verdict.RequiresPartnershipsFile {
		verdict.Partnerships = reduceScoped(sorted, domain.FileTypePartnerships, verdict)
	}

	verdict.Errors = collectErrors(verdict)
	verdict.ValidationPass = verdict.CompanyDetails.DataComplete && verdict.CompanyDetails.Valid &&
		IsBrandsFileValid(verdict) && IsPartnershipsFileValid(verdict) &&
		len(verdict.Errors) == 0
	return verdict
}

// reduceScoped reduces a companion chain within the bundle's registration set.
// Legacy events carry no set id; for those the newest chain of the file type
// across the whole snapshot stands in.
func reduceScoped(sorted []domain.Event, fileType domain.FileType, verdict domain.RegistrationVerdict) domain.FileValidity {
	check, ok := latestCheck(sorted, fileType, verdict.RegistrationSetID)
	if !ok && verdict.RegistrationSetID != nil {
		check, ok = latestCheck(sorted, fileType, nil)
	}
	if !ok {
		return domain.FileValidity{FileType: fileType}
	}
	return reduceFromCheck(sorted, check)
}

// IsBrandsFileValid holds vacuously when the bundle does not require a brands
// file.
func IsBrandsFileValid(v domain.RegistrationVerdict) bool {
	if !v.RequiresBrandsFile {
		return true
	}
	return v.Brands.DataComplete && v.Brands.Valid
}

// IsPartnershipsFileValid holds vacuously when the bundle does not require a
// partnerships file.
func IsPartnershipsFileValid(v domain.RegistrationVerdict) bool {
	if !v.RequiresPartnershipsFile {
		return true
	}
	return v.Partnerships.DataComplete && v.Partnerships.Valid
}

func collectErrors(v domain.RegistrationVerdict) []string {
	var errs []string
	errs = append(errs, v.CompanyDetails.Errors...)
	if v.RequiresBrandsFile {
		errs = append(errs, v.Brands.Errors...)
	}
	if v.RequiresPartnershipsFile {
		errs = append(errs, v.Partnerships.Errors...)
	}
	return errs
}

// lastValidFiles finds the most recent bundle that passed validation when
// judged against the events that existed while it was current. Each company
// details upload opens a bundle; the bundle's window closes when the next
// company details upload arrives. A later invalid re-upload therefore cannot
// erase an earlier valid bundle.
func lastValidFiles(sorted []domain.Event) *domain.LastValidFiles {
	checks := checksOf(sorted, domain.FileTypeCompanyDetails)
	for i := len(checks) - 1; i >= 0; i-- {
		check := checks[i]
		window := sorted
		if i+1 < len(checks) {
			window = eventsBefore(sorted, checks[i+1].Created)
		}
		verdict := validateBundleFromCheck(window, check)
		if !verdict.ValidationPass {
			continue
		}
		last := &domain.LastValidFiles{
			RegistrationSetID:      check.RegistrationSetID,
			CompanyDetailsFileID:   check.FileID,
			CompanyDetailsFileName: check.FileName,
			UploadedBy:             check.UserID,
			UploadedAt:             check.Created,
		}
		if verdict.RequiresBrandsFile {
			last.BrandsFileName = verdict.Brands.FileName
		}
		if verdict.RequiresPartnershipsFile {
			last.PartnershipsFileName = verdict.Partnerships.FileName
		}
		return last
	}
	return nil
}
