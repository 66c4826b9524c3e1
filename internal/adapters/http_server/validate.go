package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/ja"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	ja_translations "github.com/go-playground/validator/v10/translations/ja"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"guesthouse/internal/domain"
)

// ---- contact form payloads ----

type accountInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Email       string  `json:"email" validate:"required,email,max=254"`
	Phone       *string `json:"phone" validate:"omitempty,max=30"`
	Nationality string  `json:"nationality" validate:"required,max=60"`
	Gender      string  `json:"gender" validate:"required,oneof=male female other"`
	Age         int     `json:"age" validate:"required,gte=16,lte=120"`
}

type tourInput struct {
	Type    string       `json:"type"`
	Account accountInput `json:"account"`
	Places  []string     `json:"places" validate:"required,min=1,max=10,dive,required,placeid"`
	Date    string       `json:"date" validate:"required,datetime=2006-01-02"`
	Hour    string       `json:"hour" validate:"required,datetime=15:04"`
}

type moveInInput struct {
	Type         string       `json:"type"`
	Account      accountInput `json:"account"`
	Places       []string     `json:"places" validate:"required,min=1,max=10,dive,required,placeid"`
	Date         string       `json:"date" validate:"required,datetime=2006-01-02"`
	StayDuration string       `json:"stayDuration" validate:"required,max=60"`
}

type otherInput struct {
	Type    string       `json:"type"`
	Account accountInput `json:"account"`
	Message string       `json:"message" validate:"required,max=5000"`
}

func (a accountInput) toDomain() domain.Account {
	acc := domain.Account{
		Name:        strings.TrimSpace(a.Name),
		Email:       strings.TrimSpace(a.Email),
		Nationality: strings.TrimSpace(a.Nationality),
		Gender:      a.Gender,
		Age:         a.Age,
	}
	if a.Phone != nil && strings.TrimSpace(*a.Phone) != "" {
		p := strings.TrimSpace(*a.Phone)
		acc.Phone = &p
	}
	return acc
}

// places normalizes and dedups the selected place names, keeping their order.
func places(in []string) []string {
	return lo.Uniq(lo.Map(in, func(p string, _ int) string { return domain.NormalizePlace(p) }))
}

// ---- validation ----

// errBadPayload is a malformed body (not JSON, unknown type, unknown fields).
var errBadPayload = errors.New("invalid contact payload")

// validation is the contact form validator with en and ja messages.
type validation struct {
	v   *validator.Validate
	uni *ut.UniversalTranslator
}

func newValidation() *validation {
	enLoc, jaLoc := en.New(), ja.New()
	uni := ut.New(enLoc, enLoc, jaLoc)

	v := validator.New(validator.WithRequiredStructEnabled())
	// prefer json tag names in messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})

	enT, _ := uni.GetTranslator("en")
	jaT, _ := uni.GetTranslator("ja")
	if err := en_translations.RegisterDefaultTranslations(v, enT); err != nil {
		log.Error().Err(err).Msg("register en validation messages failed")
	}
	if err := ja_translations.RegisterDefaultTranslations(v, jaT); err != nil {
		log.Error().Err(err).Msg("register ja validation messages failed")
	}

	if err := v.RegisterValidation("placeid", func(fl validator.FieldLevel) bool {
		return domain.IsPlaceID(fl.Field().String())
	}); err != nil {
		log.Error().Err(err).Msg("register placeid rule failed")
	}
	registerMessage(v, enT, "placeid", "{0} must be a house identifier")
	registerMessage(v, jaT, "placeid", "{0}は施設IDでなければなりません")
	return &validation{v: v, uni: uni}
}

func registerMessage(v *validator.Validate, tr ut.Translator, tag, text string) {
	err := v.RegisterTranslation(tag, tr,
		func(ut ut.Translator) error { return ut.Add(tag, text, true) },
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, err := ut.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		})
	if err != nil {
		log.Error().Err(err).Str("tag", tag).Msg("register validation message failed")
	}
}

func (va *validation) translator(locale string) ut.Translator {
	t, _ := va.uni.FindTranslator(strings.ToLower(locale), "en")
	return t
}

// fieldErrors translates validation failures keyed by json path
// ("account.email", "places[0]").
func (va *validation) fieldErrors(err error, locale string) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	tr := va.translator(locale)
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		out[ns] = fe.Translate(tr)
	}
	return out
}

// decodeSubmission reads one contact payload, picking the variant by its
// "type" field, and validates it.
func (va *validation) decodeSubmission(body io.Reader) (domain.Submission, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	var head struct {
		Type domain.Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPayload, err)
	}

	switch head.Type {
	case domain.KindTour:
		in, err := decodeStrict[tourInput](raw)
		if err != nil {
			return nil, err
		}
		in.Places = places(in.Places)
		if err := va.v.Struct(in); err != nil {
			return nil, err
		}
		return domain.TourSubmission{Account: in.Account.toDomain(), Places: in.Places, Date: in.Date, Hour: in.Hour}, nil
	case domain.KindMoveIn:
		in, err := decodeStrict[moveInInput](raw)
		if err != nil {
			return nil, err
		}
		in.Places = places(in.Places)
		if err := va.v.Struct(in); err != nil {
			return nil, err
		}
		return domain.MoveInSubmission{
			Account:      in.Account.toDomain(),
			Places:       in.Places,
			Date:         in.Date,
			StayDuration: strings.TrimSpace(in.StayDuration),
		}, nil
	case domain.KindOther:
		in, err := decodeStrict[otherInput](raw)
		if err != nil {
			return nil, err
		}
		if err := va.v.Struct(in); err != nil {
			return nil, err
		}
		return domain.OtherSubmission{Account: in.Account.toDomain(), Message: strings.TrimSpace(in.Message)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errBadPayload, head.Type)
	}
}

func decodeStrict[T any](raw []byte) (T, error) {
	var dst T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		return dst, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if dec.More() {
		return dst, fmt.Errorf("%w: unexpected trailing data", errBadPayload)
	}
	return dst, nil
}
