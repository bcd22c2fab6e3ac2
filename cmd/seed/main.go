// Command seed provisions the initial accounts a fresh deployment needs:
// one admin, one demo doctor with a weekday schedule and one demo patient.
// Safe to re-run; existing emails are left alone.
package main

import (
	"errors"
	"fmt"

	"clinic-appointment-system/config"
	"clinic-appointment-system/internal/domain/entity"
	"clinic-appointment-system/internal/infrastructure/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if err := database.RunMigrations(cfg.DB); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := database.NewPostgresConnection(cfg.DB)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	adminPassword := viper.GetString("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		logrus.Fatal("SEED_ADMIN_PASSWORD must be set")
	}

	if err := seedAdmin(db, adminPassword); err != nil {
		logrus.Fatalf("Failed to seed admin: %v", err)
	}
	if err := seedDemoDoctor(db); err != nil {
		logrus.Fatalf("Failed to seed demo doctor: %v", err)
	}
	if err := seedDemoPatient(db); err != nil {
		logrus.Fatalf("Failed to seed demo patient: %v", err)
	}

	logrus.Info("Seed complete")
}

func seedAdmin(db *gorm.DB, password string) error {
	return createUser(db, &entity.User{
		RoleID:   entity.RoleIDAdmin,
		Email:    "admin@clinic.local",
		FullName: "Clinic Administrator",
	}, password, nil)
}

func seedDemoDoctor(db *gorm.DB) error {
	user := &entity.User{
		RoleID:   entity.RoleIDDoctor,
		Email:    "doctor@clinic.local",
		FullName: "Dr. Demo",
		Phone:    "+100000000",
	}
	return createUser(db, user, "changeme", func(tx *gorm.DB) error {
		profile := &entity.DoctorProfile{
			UserID:            user.ID,
			Specialization:    "General Practice",
			DailyPatientLimit: entity.DefaultDailyPatientLimit,
			IsAvailable:       true,
		}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		// Weekday schedule, weekends off.
		for weekday := 1; weekday <= 5; weekday++ {
			hour := &entity.WorkingHour{
				DoctorID:  user.ID,
				Weekday:   weekday,
				StartTime: "09:00",
				EndTime:   "17:00",
			}
			if err := tx.Create(hour).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func seedDemoPatient(db *gorm.DB) error {
	user := &entity.User{
		RoleID:   entity.RoleIDPatient,
		Email:    "patient@clinic.local",
		FullName: "Demo Patient",
		Phone:    "+100000001",
	}
	return createUser(db, user, "changeme", func(tx *gorm.DB) error {
		return tx.Create(&entity.PatientProfile{
			UserID:    user.ID,
			BloodType: "O+",
		}).Error
	})
}

// createUser inserts the user with a hashed password and runs the extra
// profile setup in the same transaction. Skips silently when the email
// already exists.
func createUser(db *gorm.DB, user *entity.User, password string, extra func(tx *gorm.DB) error) error {
	var existing entity.User
	err := db.Where("email = ?", user.Email).First(&existing).Error
	if err == nil {
		logrus.Infof("User %s already exists, skipping", user.Email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
}
