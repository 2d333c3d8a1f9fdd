package importer

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FetchFTP retrieves report bytes from an ftp:// URL. Suppliers commonly
// drop ESG report exports on FTP endpoints; `import --from` uses this to
// pull them directly.
func FetchFTP(ctx context.Context, ftpURL string, timeout time.Duration) ([]byte, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("importer: ftp fetch", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "importer: ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return nil, eris.Wrap(err, "importer: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: ftp retrieve")
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrap(err, "importer: ftp read")
	}
	return data, nil
}

func parseFTPURL(rawURL string) (host, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "importer: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("importer: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", "", eris.New("importer: empty path in ftp url")
	}
	return host, u.Path, nil
}
