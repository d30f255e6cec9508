// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"os"
)

type (
	// Nuspec is the package metadata embedded in a nupkg artifact.
	Nuspec struct {
		ID          string
		Version     string
		Authors     string
		Description string
	}

	// nupkgArchiver writes a NuGet-style package: a zip archive carrying the
	// payload files verbatim plus a generated <id>.nuspec and
	// [Content_Types].xml at the root.
	nupkgArchiver struct {
		meta Nuspec
	}

	nuspecXML struct {
		XMLName  xml.Name          `xml:"package"`
		Xmlns    string            `xml:"xmlns,attr"`
		Metadata nuspecMetadataXML `xml:"metadata"`
	}

	nuspecMetadataXML struct {
		ID          string `xml:"id"`
		Version     string `xml:"version"`
		Authors     string `xml:"authors"`
		Description string `xml:"description"`
	}
)

const nuspecXmlns = "http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd"

// contentTypesXML is static: nupkg consumers only require the default
// extension registrations to be present.
const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="nuspec" ContentType="application/octet" />` +
	`<Default Extension="psmdcp" ContentType="application/vnd.openxmlformats-package.core-properties+xml" />` +
	`</Types>`

// Extension returns ".nupkg".
func (a *nupkgArchiver) Extension() string { return ".nupkg" }

// Archive writes the payload plus nupkg metadata entries into a zip at dest.
func (a *nupkgArchiver) Archive(ctx context.Context, files []File, dest string, progress func(float64)) error {
	nuspec, err := a.renderNuspec()
	if err != nil {
		return &WriteError{Dest: dest, Err: err}
	}

	tr := newTracker(files, progress)

	return writeAtomic(dest, func(f *os.File) (err error) {
		zw := zip.NewWriter(f)
		defer func() {
			if closeErr := zw.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		if err = writeZipString(zw, a.nuspecName(), nuspec); err != nil {
			return err
		}
		if err = writeZipString(zw, "[Content_Types].xml", contentTypesXML); err != nil {
			return err
		}

		for _, file := range files {
			if err = ctx.Err(); err != nil {
				return err
			}
			if err = checkEntryPath(file.RelPath); err != nil {
				return err
			}
			if err = addZipEntry(zw, file, tr); err != nil {
				return err
			}
			tr.fileDone()
		}
		return nil
	})
}

func (a *nupkgArchiver) nuspecName() string {
	id := a.meta.ID
	if id == "" {
		id = "package"
	}
	return id + ".nuspec"
}

func (a *nupkgArchiver) renderNuspec() (string, error) {
	doc := nuspecXML{
		Xmlns: nuspecXmlns,
		Metadata: nuspecMetadataXML{
			ID:          a.meta.ID,
			Version:     a.meta.Version,
			Authors:     a.meta.Authors,
			Description: a.meta.Description,
		},
	}
	if doc.Metadata.Authors == "" {
		doc.Metadata.Authors = doc.Metadata.ID
	}
	if doc.Metadata.Description == "" {
		doc.Metadata.Description = doc.Metadata.ID
	}

	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render nuspec: %w", err)
	}
	return xml.Header + string(b), nil
}

func writeZipString(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %q: %w", name, err)
	}
	if _, err = w.Write([]byte(content)); err != nil {
		return fmt.Errorf("failed to write zip entry %q: %w", name, err)
	}
	return nil
}
