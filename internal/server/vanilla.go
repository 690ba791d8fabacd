package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultManifestURL is Mojang's version manifest.
const DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// ForgeDownloadBase is the Forge maven root.
const ForgeDownloadBase = "http://files.minecraftforge.net/maven/net/minecraftforge/forge"

type versionManifest struct {
	Latest struct {
		Release string `json:"release"`
	} `json:"latest"`
	Versions []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"versions"`
}

type versionMeta struct {
	Downloads struct {
		Server struct {
			URL string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

// VanillaResolver looks up server jar URLs in the version manifest.
type VanillaResolver struct {
	ManifestURL string
	http        *HTTPFetcher
}

// NewVanillaResolver returns a resolver for manifestURL, or the Mojang
// manifest when empty.
func NewVanillaResolver(manifestURL string, client *http.Client) *VanillaResolver {
	if manifestURL == "" {
		manifestURL = DefaultManifestURL
	}
	return &VanillaResolver{ManifestURL: manifestURL, http: &HTTPFetcher{Client: client}}
}

// DownloadURL resolves the download URL for a Vanilla server JAR.
func (v *VanillaResolver) DownloadURL(ctx context.Context, version string) (string, error) {
	body, err := v.http.getBody(ctx, v.ManifestURL)
	if err != nil {
		return "", fmt.Errorf("fetching version manifest: %w", err)
	}

	var manifest versionManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return "", fmt.Errorf("parsing version manifest: %w", err)
	}

	if version == "latest" {
		version = manifest.Latest.Release
	}

	var versionURL string
	for _, m := range manifest.Versions {
		if m.ID == version {
			versionURL = m.URL
			break
		}
	}
	if versionURL == "" {
		return "", fmt.Errorf("minecraft version %q not found", version)
	}

	metaBody, err := v.http.getBody(ctx, versionURL)
	if err != nil {
		return "", fmt.Errorf("fetching version metadata: %w", err)
	}

	var meta versionMeta
	if err := json.Unmarshal(metaBody, &meta); err != nil {
		return "", fmt.Errorf("parsing version metadata: %w", err)
	}

	if meta.Downloads.Server.URL == "" {
		return "", fmt.Errorf("no server download for version %s", version)
	}

	return meta.Downloads.Server.URL, nil
}

// ForgeDownloadURL is the universal jar URL for a Forge version string such
// as "1.7.10-10.13.4.1614-1.7.10".
func ForgeDownloadURL(forgeVersion string) string {
	return fmt.Sprintf("%s/%s/%s", ForgeDownloadBase, forgeVersion, forgeJarName(forgeVersion))
}
