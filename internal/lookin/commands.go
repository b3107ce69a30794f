package lookin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dokzlo13/lookind/internal/ir"
)

// Commands lists the command classes the device supports.
func (c *Client) Commands(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "commands", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// SendCommand issues GET commands/<path>. path must be escaped by the caller
// ("ir/ac/0107" + status hex, "ir/nec1/20DF10EF").
func (c *Client) SendCommand(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodGet, "commands/"+path, nil)
}

// SendRaw transmits raw timings at the signal's carrier frequency.
func (c *Client) SendRaw(ctx context.Context, sig ir.RawSignal) error {
	if sig.IsZero() {
		return fmt.Errorf("empty raw signal")
	}
	return c.SendCommand(ctx, fmt.Sprintf("ir/raw/%d;%s", sig.CarrierHz(), url.PathEscape(sig.String())))
}

// SendNEC1 transmits a 32-bit NEC1 code on 38 kHz.
func (c *Client) SendNEC1(ctx context.Context, code uint32) error {
	return c.SendCommand(ctx, fmt.Sprintf("ir/nec1/%X", code))
}

// SendNECX transmits a 32-bit NECx code on 38 kHz.
func (c *Client) SendNECX(ctx context.Context, code uint32) error {
	return c.SendCommand(ctx, fmt.Sprintf("ir/necx/%x", code))
}

// SendProntoHex transmits a ProntoHEX sequence ("0000 006C 0022 0002 ...").
func (c *Client) SendProntoHex(ctx context.Context, pronto string) error {
	return c.SendCommand(ctx, "ir/prontohex/"+url.PathEscape(pronto))
}

// SendSaved transmits a signal from device memory.
func (c *Client) SendSaved(ctx context.Context, id int) error {
	return c.SendCommand(ctx, "ir/saved/"+strconv.Itoa(id))
}

// SendLocalRemote triggers a function of a remote stored on the device.
// signalID 0xFF selects the default signal.
func (c *Client) SendLocalRemote(ctx context.Context, uuid string, function, signalID uint8) error {
	return c.SendCommand(ctx, fmt.Sprintf("ir/localremote/%s%02X%02X", url.PathEscape(uuid), function, signalID))
}
