// Package picooc pulls body-composition measurements from the Picooc scale
// cloud. Records are point measurements keyed by exact timestamp, so they
// merge under InsertOnly: several same-day readings are legitimate and must
// not collide.
//
// The API is session-based: each call carries a signed parameter set, and
// listing pages forward with a lastTime cursor plus a continue flag.
package picooc

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/provider"
)

const SourceName = "picooc"

const appVer = "i4.1.11.0"

// Config holds Picooc account credentials and endpoint.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

// Adapter implements provider.Adapter for Picooc.
type Adapter struct {
	client *provider.Client
	cfg    Config

	deviceID string
	userID   string
	roleID   string
}

// New builds a Picooc adapter. Login happens lazily on first Fetch.
func New(cfg Config) *Adapter {
	return &Adapter{
		client: provider.NewClient(SourceName, provider.ClientConfig{
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: 2,
		}),
		cfg:      cfg,
		deviceID: strings.ToUpper(uuid.NewString()),
	}
}

func (a *Adapter) Name() string { return SourceName }

// Fetch logs in if needed, then pages the body-index listing until the
// provider reports no continuation, normalizing rows into weight records.
func (a *Adapter) Fetch(ctx context.Context, window model.TimeRange) ([]model.Record, error) {
	if a.userID == "" {
		if err := a.login(ctx); err != nil {
			return nil, err
		}
	}

	params := a.signedValues("bodyIndexList")
	params.Set("pageSize", "500")
	params.Set("time", strconv.FormatInt(window.From.Unix(), 10))
	params.Set("userId", a.userID)
	params.Set("roleId", a.roleID)

	var out []model.Record
	for {
		var resp bodyIndexResponse
		if err := a.client.GetJSON(ctx, "/v1/api/bodyIndex/bodyIndexList", params, &resp); err != nil {
			var fe *model.FetchError
			transient := true
			if errors.As(err, &fe) {
				transient = fe.Transient
			}
			if len(out) > 0 {
				return out, &model.FetchError{Source: SourceName, Transient: transient, Partial: true, Err: err}
			}
			return nil, err
		}

		for _, row := range resp.Resp.Records {
			// Rows the scale itself flagged, or soft-deleted ones, are noise.
			if row.AbnormalFlag != 0 || row.IsDel != 0 || row.Weight <= 0 {
				continue
			}
			ts := time.Unix(row.BodyTime, 0).UTC()
			if ts.After(window.To) {
				continue
			}
			rec := model.Record{
				Key:  ts.Format(time.RFC3339),
				Kind: model.KindWeight,
				Time: ts,
				Metrics: map[string]float64{
					"weight": row.Weight,
				},
			}
			addIfSet(rec.Metrics, "bmi", row.BMI)
			addIfSet(rec.Metrics, "bodyFat", row.BodyFat)
			addIfSet(rec.Metrics, "bodyWater", row.WaterRace)
			addIfSet(rec.Metrics, "boneMass", row.BoneMass)
			addIfSet(rec.Metrics, "skeletalMuscle", row.SkeletalMuscle)
			addIfSet(rec.Metrics, "visceralFat", float64(row.VisceralFatLevel))
			addIfSet(rec.Metrics, "basalMetabolism", float64(row.BasicMetabolism))
			if row.MAC != "" {
				rec.Attrs = map[string]string{"device": row.MAC}
			}
			out = append(out, rec)
		}

		if !resp.Resp.Continue {
			return out, nil
		}
		params.Set("time", strconv.FormatInt(resp.Resp.LastTime, 10))
	}
}

type bodyIndexResponse struct {
	Resp struct {
		Records []struct {
			BodyTime         int64   `json:"bodyTime"`
			Weight           float64 `json:"weight"`
			BMI              float64 `json:"bmi"`
			BodyFat          float64 `json:"body_fat"`
			WaterRace        float64 `json:"water_race"`
			BoneMass         float64 `json:"bone_mass"`
			SkeletalMuscle   float64 `json:"skeletal_muscle"`
			VisceralFatLevel int     `json:"visceral_fat_level"`
			BasicMetabolism  int     `json:"basic_metabolism"`
			AbnormalFlag     int     `json:"abnormal_flag"`
			IsDel            int     `json:"is_del"`
			MAC              string  `json:"mac"`
		} `json:"records"`
		LastTime int64 `json:"lastTime"`
		Continue bool  `json:"continue"`
	} `json:"resp"`
}

func addIfSet(m map[string]float64, key string, v float64) {
	if v != 0 {
		m[key] = v
	}
}

func (a *Adapter) login(ctx context.Context) error {
	form := a.signedValues("user_login_new")

	reqData, err := json.Marshal(map[string]any{
		"appver":    form.Get("appver"),
		"timestamp": form.Get("timestamp"),
		"method":    form.Get("method"),
		"sign":      form.Get("sign"),
		"device_id": a.deviceID,
		"req": map[string]string{
			"app_version": form.Get("appver"),
			"email":       a.cfg.Email,
			"password":    a.cfg.Password,
		},
	})
	if err != nil {
		return err
	}
	form.Set("reqData", string(reqData))

	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Resp struct {
			UserID string `json:"user_id"`
			RoleID string `json:"role_id"`
		} `json:"resp"`
	}
	if err := a.client.PostForm(ctx, "/v1/api/account/login", form, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		// Credential problems never fix themselves by retrying.
		return &model.FetchError{Source: SourceName, Err: fmt.Errorf("login error: %s", resp.Msg)}
	}

	a.userID = resp.Resp.UserID
	a.roleID = resp.Resp.RoleID
	return nil
}

// signedValues builds the signed base parameter set every Picooc call
// carries.
func (a *Adapter) signedValues(method string) url.Values {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sign := upperMD5(a.deviceID + upperMD5(timestamp+upperMD5(method)+upperMD5(appVer)))

	return url.Values{
		"appver":    {appVer},
		"timestamp": {timestamp},
		"lang":      {"en"},
		"method":    {method},
		"sign":      {sign},
		"device_id": {a.deviceID},
	}
}

func upperMD5(s string) string {
	return fmt.Sprintf("%X", md5.Sum([]byte(s)))
}
