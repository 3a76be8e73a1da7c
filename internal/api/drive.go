package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

const (
	listFields       = "nextPageToken,files(id,name,mimeType,md5Checksum,modifiedTime,ownedByMe,owners(emailAddress),webViewLink,resourceKey)"
	permissionFields = "nextPageToken,permissions(id,type,role,emailAddress,domain,pendingOwner)"
)

// ListChildren returns one page of the direct children of folderID.
// Trashed items are excluded.
func (c *Client) ListChildren(ctx context.Context, folderID, pageToken string) (types.RemotePage, error) {
	reqCtx := NewRequestContext(ctx, types.RequestTypeListOrSearch, folderID)
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	result, err := ExecuteWithRetry(ctx, c, "files.list", reqCtx, func(ctx context.Context) (*drive.FileList, error) {
		call := c.service.Files.List().
			Q(query).
			PageSize(utils.ListPageSize).
			Fields(googleapi.Field(listFields)).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		c.resourceKeyMgr.Apply(call.Header(), folderID)
		return call.Do()
	})
	if err != nil {
		return types.RemotePage{}, err
	}

	page := types.RemotePage{
		Items:         make([]types.RemoteItem, 0, len(result.Files)),
		NextPageToken: result.NextPageToken,
	}
	for _, f := range result.Files {
		c.resourceKeyMgr.UpdateFromAPIResponse(f.Id, f.ResourceKey)
		page.Items = append(page.Items, convertFile(f))
	}
	return page, nil
}

// ListPermissions returns every permission on itemID in API order.
func (c *Client) ListPermissions(ctx context.Context, itemID string) ([]types.Permission, error) {
	reqCtx := NewRequestContext(ctx, types.RequestTypePermissionOp, itemID)

	var perms []types.Permission
	pageToken := ""
	for {
		token := pageToken
		result, err := ExecuteWithRetry(ctx, c, "permissions.list", reqCtx, func(ctx context.Context) (*drive.PermissionList, error) {
			call := c.service.Permissions.List(itemID).
				Fields(googleapi.Field(permissionFields)).
				PageSize(utils.PermissionPageSize).
				SupportsAllDrives(true).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			c.resourceKeyMgr.Apply(call.Header(), itemID)
			return call.Do()
		})
		if err != nil {
			return nil, err
		}

		for _, p := range result.Permissions {
			perms = append(perms, convertPermission(p))
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}
	return perms, nil
}

// Export streams itemID converted to targetType. The caller closes the stream.
func (c *Client) Export(ctx context.Context, itemID, targetType string) (io.ReadCloser, error) {
	reqCtx := NewRequestContext(ctx, types.RequestTypeDownloadOrExport, itemID)
	return c.stream(ctx, "files.export", reqCtx, func(ctx context.Context) (*http.Response, error) {
		call := c.service.Files.Export(itemID, targetType).Context(ctx)
		c.resourceKeyMgr.Apply(call.Header(), itemID)
		return call.Download()
	})
}

// Download streams the stored bytes of itemID. The caller closes the stream.
func (c *Client) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	reqCtx := NewRequestContext(ctx, types.RequestTypeDownloadOrExport, itemID)
	return c.stream(ctx, "files.get", reqCtx, func(ctx context.Context) (*http.Response, error) {
		call := c.service.Files.Get(itemID).SupportsAllDrives(true).AcknowledgeAbuse(false).Context(ctx)
		c.resourceKeyMgr.Apply(call.Header(), itemID)
		return call.Download()
	})
}

func (c *Client) stream(ctx context.Context, operation string, reqCtx *types.RequestContext, fn func(ctx context.Context) (*http.Response, error)) (io.ReadCloser, error) {
	resp, release, err := execute(ctx, c, operation, reqCtx, fn)
	if err != nil {
		return nil, err
	}
	return &releasingBody{ReadCloser: resp.Body, release: release}, nil
}

// releasingBody cancels the attempt context once the stream is closed.
type releasingBody struct {
	io.ReadCloser
	release context.CancelFunc
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

// Copy duplicates itemID as newType under newName and returns the new id.
// Copying a foreign office file with a Google type converts it.
func (c *Client) Copy(ctx context.Context, itemID, newType, newName string) (string, error) {
	reqCtx := NewRequestContext(ctx, types.RequestTypeMutation, itemID)
	result, err := ExecuteWithRetry(ctx, c, "files.copy", reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := c.service.Files.Copy(itemID, &drive.File{Name: newName, MimeType: newType}).
			Fields("id").
			SupportsAllDrives(true).
			Context(ctx)
		c.resourceKeyMgr.Apply(call.Header(), itemID)
		return call.Do()
	})
	if err != nil {
		return "", err
	}
	return result.Id, nil
}

// Delete permanently removes itemID.
func (c *Client) Delete(ctx context.Context, itemID string) error {
	reqCtx := NewRequestContext(ctx, types.RequestTypeMutation, itemID)
	_, err := ExecuteWithRetry(ctx, c, "files.delete", reqCtx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.service.Files.Delete(itemID).SupportsAllDrives(true).Context(ctx).Do()
	})
	if err == nil {
		c.resourceKeyMgr.Invalidate(itemID)
	}
	return err
}

// Trash moves itemID to the trash.
func (c *Client) Trash(ctx context.Context, itemID string) error {
	reqCtx := NewRequestContext(ctx, types.RequestTypeMutation, itemID)
	_, err := ExecuteWithRetry(ctx, c, "files.trash", reqCtx, func(ctx context.Context) (*drive.File, error) {
		return c.service.Files.Update(itemID, &drive.File{Trashed: true}).
			Fields("id,trashed").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	})
	return err
}

// RequestOwnershipTransfer marks newOwner as pending owner of itemID, which
// notifies the current owner. newOwner gets writer access first when it has
// no permission on the item yet.
func (c *Client) RequestOwnershipTransfer(ctx context.Context, itemID, newOwner string) error {
	perms, err := c.ListPermissions(ctx, itemID)
	if err != nil {
		return err
	}

	reqCtx := NewRequestContext(ctx, types.RequestTypePermissionOp, itemID)
	permID := ""
	for _, p := range perms {
		if strings.EqualFold(p.Principal, newOwner) {
			if p.PendingTransfer {
				return nil
			}
			permID = p.ID
			break
		}
	}

	if permID == "" {
		created, err := ExecuteWithRetry(ctx, c, "permissions.create", reqCtx, func(ctx context.Context) (*drive.Permission, error) {
			return c.service.Permissions.Create(itemID, &drive.Permission{
				Type:         "user",
				Role:         "writer",
				EmailAddress: newOwner,
			}).SendNotificationEmail(false).SupportsAllDrives(true).Fields("id").Context(ctx).Do()
		})
		if err != nil {
			return err
		}
		permID = created.Id
	}

	_, err = ExecuteWithRetry(ctx, c, "permissions.update", reqCtx, func(ctx context.Context) (*drive.Permission, error) {
		return c.service.Permissions.Update(itemID, permID, &drive.Permission{
			Role:         "writer",
			PendingOwner: true,
		}).SupportsAllDrives(true).Fields("id,role,pendingOwner").Context(ctx).Do()
	})
	return err
}

// About returns the email address of the authenticated identity.
func (c *Client) About(ctx context.Context) (string, error) {
	reqCtx := NewRequestContext(ctx, types.RequestTypeListOrSearch)
	about, err := ExecuteWithRetry(ctx, c, "about.get", reqCtx, func(ctx context.Context) (*drive.About, error) {
		return c.service.About.Get().Fields("user(emailAddress,displayName)").Context(ctx).Do()
	})
	if err != nil {
		return "", err
	}
	if about.User == nil || about.User.EmailAddress == "" {
		return "", utils.NewValidationError(utils.ErrCodeInvalidArgument, "about.get returned no user email")
	}
	return about.User.EmailAddress, nil
}

func convertFile(f *drive.File) types.RemoteItem {
	item := types.RemoteItem{
		ID:                     f.Id,
		Name:                   f.Name,
		ContentType:            f.MimeType,
		ContentHash:            f.Md5Checksum,
		ModifiedAt:             f.ModifiedTime,
		OwnedByServiceIdentity: f.OwnedByMe,
		ViewURL:                f.WebViewLink,
		IsFolder:               f.MimeType == utils.MimeTypeFolder,
	}
	if len(f.Owners) > 0 && f.Owners[0] != nil {
		item.OwnerEmail = f.Owners[0].EmailAddress
	}
	return item
}

func convertPermission(p *drive.Permission) types.Permission {
	principal := p.EmailAddress
	if principal == "" {
		principal = p.Domain
	}
	if principal == "" {
		principal = p.Type
	}
	return types.Permission{
		ID:              p.Id,
		Principal:       principal,
		Role:            p.Role,
		PendingTransfer: p.PendingOwner,
	}
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
