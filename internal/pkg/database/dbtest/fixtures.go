package dbtest

import (
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

// Fixture is a minimal tenant → provider → customer → property chain.
type Fixture struct {
	Tenant   models.Tenant
	Provider models.ServiceProvider
	Customer models.Customer
	Property models.Property
}

// Seed creates one full ownership chain. Call it again for a second tenant.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{}
	f.Tenant = models.Tenant{Name: "Tenant"}
	must(t, db.Create(&f.Tenant).Error)

	f.Provider = models.ServiceProvider{TenantID: f.Tenant.ID, Name: "Sparkle Services"}
	must(t, db.Create(&f.Provider).Error)

	f.Customer = CreateCustomer(t, db, f.Provider.ID, models.PaymentTermsNet14)
	f.Property = CreateProperty(t, db, f.Customer.ID, "Seaside Loft")
	return f
}

func CreateCustomer(t *testing.T, db *gorm.DB, providerID uint, terms string) models.Customer {
	t.Helper()

	var n int64
	must(t, db.Model(&models.Customer{}).Where("provider_id = ?", providerID).Count(&n).Error)
	c := models.Customer{
		ProviderID:     providerID,
		CustomerNumber: fmt.Sprintf("CUS-TEST-%04d", n+1),
		Name:           "Harbor Rentals",
		Email:          "office@harbor.example",
		PaymentTerms:   terms,
	}
	must(t, db.Create(&c).Error)
	return c
}

func CreateProperty(t *testing.T, db *gorm.DB, customerID uint, name string) models.Property {
	t.Helper()

	p := models.Property{CustomerID: customerID, Name: name, Address: name + " 1"}
	must(t, db.Create(&p).Error)
	return p
}

func CreateWorker(t *testing.T, db *gorm.DB, providerID uint, workerType string, userID uint) models.Worker {
	t.Helper()

	w := models.Worker{ProviderID: providerID, Name: "Worker " + workerType, Type: workerType}
	if userID != 0 {
		w.UserID = &userID
	}
	must(t, db.Create(&w).Error)
	return w
}

func CreateContractor(t *testing.T, db *gorm.DB, providerID uint, userID uint) models.Contractor {
	t.Helper()

	c := models.Contractor{ProviderID: providerID, CompanyName: "FixIt Ltd"}
	if userID != 0 {
		c.UserID = &userID
	}
	must(t, db.Create(&c).Error)
	return c
}

// Deactivate flips is_active to false. Creating with IsActive=false does not
// work because gorm skips zero values that have a column default.
func Deactivate(t *testing.T, db *gorm.DB, model interface{}) {
	t.Helper()
	must(t, db.Model(model).Update("is_active", false).Error)
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
}
