package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsID is the _id of the only document in the settings collection.
const SettingsID = "global"

// MaskedSecret replaces secrets in API responses. Sending it back unchanged keeps the stored value.
const MaskedSecret = "********"

type EmailSettings struct {
	FromAddress          string `bson:"fromAddress" json:"fromAddress" binding:"required,email"`
	FromName             string `bson:"fromName" json:"fromName" binding:"max=100"`
	ReplyTo              string `bson:"replyTo,omitempty" json:"replyTo" binding:"omitempty,email"`
	SMTPHost             string `bson:"smtpHost" json:"smtpHost" binding:"required,max=255"`
	SMTPPort             int    `bson:"smtpPort" json:"smtpPort" binding:"required,min=1,max=65535"`
	SMTPUsername         string `bson:"smtpUsername,omitempty" json:"smtpUsername"`
	SMTPPassword         string `bson:"smtpPassword,omitempty" json:"smtpPassword"`
	ReminderIntervalDays int    `bson:"reminderIntervalDays" json:"reminderIntervalDays" binding:"min=1,max=90"`
	MaxReminders         int    `bson:"maxReminders" json:"maxReminders" binding:"min=0,max=10"`
}

type SecuritySettings struct {
	PasswordMinLength     int `bson:"passwordMinLength" json:"passwordMinLength" binding:"min=8,max=128"`
	SessionTimeoutMinutes int `bson:"sessionTimeoutMinutes" json:"sessionTimeoutMinutes" binding:"min=5,max=10080"`
	MaxLoginAttempts      int `bson:"maxLoginAttempts" json:"maxLoginAttempts" binding:"min=1,max=100"`
}

type SystemSettings struct {
	MaintenanceMode bool   `bson:"maintenanceMode" json:"maintenanceMode"`
	SurveyBaseURL   string `bson:"surveyBaseUrl" json:"surveyBaseUrl" binding:"required,httpurl"`
	SupportEmail    string `bson:"supportEmail,omitempty" json:"supportEmail" binding:"omitempty,email"`
	DefaultCurrency string `bson:"defaultCurrency" json:"defaultCurrency" binding:"required,len=3,alpha,uppercase"`
}

// Settings is the platform-wide configuration editable from the admin UI.
type Settings struct {
	ID        string              `bson:"_id" json:"-"`
	Email     EmailSettings       `bson:"email" json:"email"`
	Security  SecuritySettings    `bson:"security" json:"security"`
	System    SystemSettings      `bson:"system" json:"system"`
	UpdatedBy *primitive.ObjectID `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func DefaultSettings() Settings {
	return Settings{
		ID: SettingsID,
		Email: EmailSettings{
			FromAddress:          "surveys@example.com",
			FromName:             "KOL Surveys",
			SMTPHost:             "localhost",
			SMTPPort:             1025,
			ReminderIntervalDays: 3,
			MaxReminders:         2,
		},
		Security: SecuritySettings{
			PasswordMinLength:     8,
			SessionTimeoutMinutes: 1440,
			MaxLoginAttempts:      10,
		},
		System: SystemSettings{
			SurveyBaseURL:   "http://localhost:3000/survey",
			DefaultCurrency: "USD",
		},
	}
}

// WithDefaults fills every zero field of s from d.
func (s Settings) WithDefaults(d Settings) Settings {
	s.ID = SettingsID
	str := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	num := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}

	str(&s.Email.FromAddress, d.Email.FromAddress)
	str(&s.Email.FromName, d.Email.FromName)
	str(&s.Email.ReplyTo, d.Email.ReplyTo)
	str(&s.Email.SMTPHost, d.Email.SMTPHost)
	num(&s.Email.SMTPPort, d.Email.SMTPPort)
	str(&s.Email.SMTPUsername, d.Email.SMTPUsername)
	str(&s.Email.SMTPPassword, d.Email.SMTPPassword)
	num(&s.Email.ReminderIntervalDays, d.Email.ReminderIntervalDays)
	// MaxReminders = 0 is a legitimate "never remind", so it is not defaulted.

	num(&s.Security.PasswordMinLength, d.Security.PasswordMinLength)
	num(&s.Security.SessionTimeoutMinutes, d.Security.SessionTimeoutMinutes)
	num(&s.Security.MaxLoginAttempts, d.Security.MaxLoginAttempts)

	str(&s.System.SurveyBaseURL, d.System.SurveyBaseURL)
	str(&s.System.SupportEmail, d.System.SupportEmail)
	str(&s.System.DefaultCurrency, d.System.DefaultCurrency)
	return s
}

// Masked returns a copy safe to send to clients.
func (s Settings) Masked() Settings {
	if s.Email.SMTPPassword != "" {
		s.Email.SMTPPassword = MaskedSecret
	}
	return s
}
