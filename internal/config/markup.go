package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Markup holds the CSS selectors and paths that describe the directory host and
// the probe host. They are external contracts, so they live in configuration.
type Markup struct {
	AuthPath        string `json:"auth_path,omitempty" envconfig:"AUTH_PATH" validate:"required,startswith=/"`
	AuthField       string `json:"auth_field,omitempty" envconfig:"AUTH_FIELD" validate:"required"`
	LoginMarker     string `json:"login_marker,omitempty" envconfig:"LOGIN_MARKER"`
	LoginMarkerText string `json:"login_marker_text,omitempty" envconfig:"LOGIN_MARKER_TEXT"`
	ListingPath     string `json:"listing_path,omitempty" envconfig:"LISTING_PATH" validate:"required,startswith=/"`
	DetailPath      string `json:"detail_path,omitempty" envconfig:"DETAIL_PATH" validate:"required,startswith=/"`
	Paginator       string `json:"paginator,omitempty" envconfig:"PAGINATOR" validate:"required"`
	Card            string `json:"card,omitempty" envconfig:"CARD" validate:"required"`
	FullName        string `json:"full_name,omitempty" envconfig:"FULL_NAME" validate:"required"`
	Nickname        string `json:"nickname,omitempty" envconfig:"NICKNAME" validate:"required"`
	Bio             string `json:"bio,omitempty" envconfig:"BIO" validate:"required"`
	Intro           string `json:"intro,omitempty" envconfig:"INTRO" validate:"required"`

	ChannelCounter     string `json:"channel_counter,omitempty" envconfig:"CHANNEL_COUNTER" validate:"required"`
	CounterValue       string `json:"counter_value,omitempty" envconfig:"COUNTER_VALUE" validate:"required"`
	ChannelTitle       string `json:"channel_title,omitempty" envconfig:"CHANNEL_TITLE" validate:"required"`
	ChannelDescription string `json:"channel_description,omitempty" envconfig:"CHANNEL_DESCRIPTION" validate:"required"`
	PageExtra          string `json:"page_extra,omitempty" envconfig:"PAGE_EXTRA" validate:"required"`
}

// DefaultMarkup returns selectors for the club directory and the t.me preview pages.
func DefaultMarkup() Markup {
	return Markup{
		AuthPath:    "/auth/email/",
		AuthField:   "email_or_login",
		LoginMarker: "button.footer-logout",
		ListingPath: "/people/",
		DetailPath:  "/user/",
		Paginator:   "a.paginator-page",
		Card:        "article.profile-card",
		FullName:    "span.profile-user-fullname",
		Nickname:    "span.profile-user-nickname",
		Bio:         "div.profile-user-bio",
		Intro:       "div.profile-intro-text",

		ChannelCounter:     "div.tgme_channel_info_counter",
		CounterValue:       "span.counter_value",
		ChannelTitle:       ".tgme_channel_info_header_title",
		ChannelDescription: "div.tgme_channel_info_description",
		PageExtra:          "div.tgme_page_extra",
	}
}

// Validate checks that every selector is set and a login marker exists.
func (m Markup) Validate() error {
	if err := validator.New().Struct(m); err != nil {
		return fmt.Errorf("markup config error: %w", err)
	}
	if m.LoginMarker == "" && m.LoginMarkerText == "" {
		return fmt.Errorf("markup config error: one of 'login_marker' or 'login_marker_text' is required")
	}
	return nil
}
