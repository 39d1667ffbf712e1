package probe

import (
	"crypto/tls"
	"math"
	"time"
)

// ExpiringWithin is how close to NotAfter a certificate is reported as
// "expiring".
const ExpiringWithin = 30 * 24 * time.Hour

// Cert describes the leaf certificate presented by an https target.
type Cert struct {
	NotAfter time.Time
	Issuer   string
	DaysLeft int    // floor of the days remaining; negative once expired
	Status   string // valid | expiring | expired
}

// certFrom inspects the connection state of a probe response. Returns nil
// for plain-HTTP targets.
func certFrom(state *tls.ConnectionState, now time.Time) *Cert {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	return classifyCert(leaf.NotAfter, leaf.Issuer.CommonName, now)
}

func classifyCert(notAfter time.Time, issuer string, now time.Time) *Cert {
	left := notAfter.Sub(now)
	c := &Cert{
		NotAfter: notAfter.UTC(),
		Issuer:   issuer,
		DaysLeft: int(math.Floor(left.Hours() / 24)),
	}
	switch {
	case left <= 0:
		c.Status = "expired"
	case left <= ExpiringWithin:
		c.Status = "expiring"
	default:
		c.Status = "valid"
	}
	return c
}
