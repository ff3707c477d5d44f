package provision

import (
	"context"

	"github.com/onboardly/onboardly/internal/drive"
	"github.com/onboardly/onboardly/internal/models"
)

// Custom field names copied from the template tenant onto every new tenant.
// Matching is exact name equality; fields outside this list are untouched.
const (
	fieldAgencyName         = "Agency Name"
	fieldAgencyPhone        = "Agency Phone"
	fieldAgencySupportEmail = "Agency Support Email"
	fieldAgencyWebsite      = "Agency Website"
	fieldBookingLink        = "Agency Booking Link"
	fieldOnboardingVideo    = "Onboarding Video"

	// Derived per account, never copied from the template.
	fieldCommandCenterLink  = "Command Center Link"
	fieldClientAssetsFolder = "Client Assets Folder"
)

func syncedFieldNames() map[string]bool {
	return map[string]bool{
		fieldAgencyName:         true,
		fieldAgencyPhone:        true,
		fieldAgencySupportEmail: true,
		fieldAgencyWebsite:      true,
		fieldBookingLink:        true,
		fieldOnboardingVideo:    true,
		fieldCommandCenterLink:  true,
		fieldClientAssetsFolder: true,
	}
}

// syncFields reconciles the allow-listed custom fields of the new account
// against the template tenant and writes the two derived link fields.
// Every failure in here is logged and skipped; field sync never aborts a run.
func (w *Workflow) syncFields(ctx context.Context, agencyToken, agencyID, locationToken, accountID, pageID string, folder *drive.Folder) {
	allowed := syncedFieldNames()

	templateToken, err := w.platform.LocationToken(ctx, agencyToken, agencyID, w.cfg.Platform.TemplateLocationID)
	if err != nil {
		w.logger.WarnWithContext(ctx, "field sync skipped, template token failed", "error", err.Error())
		return
	}
	templateFields, err := w.platform.ListCustomFields(ctx, templateToken, w.cfg.Platform.TemplateLocationID)
	if err != nil {
		w.logger.WarnWithContext(ctx, "field sync skipped, template fetch failed", "error", err.Error())
		return
	}

	w.sleep(w.cfg.Provisioning.FieldSettle)

	accountFields, err := w.platform.ListCustomFields(ctx, locationToken, accountID)
	if err != nil {
		w.logger.WarnWithContext(ctx, "field sync skipped, account fetch failed", "error", err.Error())
		return
	}

	template := models.FieldMap(templateFields, allowed)
	target := models.FieldMap(accountFields, allowed)

	for name, field := range target {
		if name == fieldCommandCenterLink || name == fieldClientAssetsFolder {
			continue
		}
		source, ok := template[name]
		if !ok {
			continue
		}
		if err := w.platform.UpdateCustomField(ctx, locationToken, accountID, field.ID, name, source.Value); err != nil {
			w.logger.WarnWithContext(ctx, "field update skipped",
				"field", name, "error", err.Error())
			w.metrics.RecordStep("sync_field", "failure")
			continue
		}
		w.metrics.RecordStep("sync_field", "success")
	}

	w.updateSpecialField(ctx, locationToken, accountID, target, fieldCommandCenterLink, "/"+pageID)
	w.updateSpecialField(ctx, locationToken, accountID, target, fieldClientAssetsFolder, folder.WebViewLink)
}

func (w *Workflow) updateSpecialField(ctx context.Context, locationToken, accountID string, target map[string]models.CustomField, name, value string) {
	field, ok := target[name]
	if !ok {
		w.logger.WarnWithContext(ctx, "derived field missing on account", "field", name)
		return
	}
	if err := w.platform.UpdateCustomField(ctx, locationToken, accountID, field.ID, name, value); err != nil {
		w.logger.WarnWithContext(ctx, "derived field update skipped",
			"field", name, "error", err.Error())
	}
}
